package artifact

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/regulations-assistant/internal/core/domain"
)

// LoadTriggers reads the trigger table used for the entity domain bonus.
// A missing file falls back to the built-in table.
func LoadTriggers(path string) ([]domain.TriggerRule, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultTriggers(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read trigger table %s: %w", path, err)
	}

	var rules []domain.TriggerRule
	if err := yaml.Unmarshal(raw, &rules); err != nil {
		return nil, fmt.Errorf("decode trigger table %s: %w", path, err)
	}
	for i, r := range rules {
		if r.Trigger == "" || r.RuleType == "" {
			return nil, fmt.Errorf("trigger table %s: entry %d is incomplete", path, i)
		}
	}
	return rules, nil
}

// DefaultTriggers maps common HR question phrasings onto rule_type tags.
func DefaultTriggers() []domain.TriggerRule {
	return []domain.TriggerRule{
		{Trigger: "phép", RuleType: "annual_leave"},
		{Trigger: "phép", RuleType: "leave"},
		{Trigger: "nghỉ", RuleType: "leave"},
		{Trigger: "thử việc", RuleType: "probation"},
		{Trigger: "chính thức", RuleType: "probation"},
		{Trigger: "thai sản", RuleType: "maternity"},
		{Trigger: "thai sản", RuleType: "paternity"},
		{Trigger: "kết hôn", RuleType: "special_leave"},
		{Trigger: "kết hôn", RuleType: "wedding"},
		{Trigger: "giờ làm", RuleType: "working_hours"},
		{Trigger: "giờ làm", RuleType: "working_days"},
		{Trigger: "đi muộn", RuleType: "lateness"},
		{Trigger: "đi muộn", RuleType: "late_threshold"},
		{Trigger: "kỷ luật", RuleType: "disciplinary"},
		{Trigger: "sa thải", RuleType: "termination"},
		{Trigger: "vay", RuleType: "loan"},
		{Trigger: "lương", RuleType: "salary"},
	}
}
