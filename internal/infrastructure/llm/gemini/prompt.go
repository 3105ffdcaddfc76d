package gemini

import "fmt"

// maxOutlineRunes bounds the outline payload so a large corpus cannot
// overflow the model's context window.
const maxOutlineRunes = 8000

func navigationPrompt(outline, query string, maxNodes int) string {
	runes := []rune(outline)
	if len(runes) > maxOutlineRunes {
		outline = string(runes[:maxOutlineRunes]) + "\n... (truncated)"
	}
	return fmt.Sprintf(`Bạn là hệ thống truy xuất thông tin. Cho các cây tài liệu bên dưới (chỉ tiêu đề và tóm tắt), hãy xác định các node chứa thông tin liên quan nhất đến câu hỏi.

CÂY TÀI LIỆU:
%s

CÂU HỎI: "%s"

Trả về JSON array gồm tối đa %d node phù hợp nhất:
[{"document_id": "...", "node_id": "...", "reason": "..."}]

Chỉ trả về JSON array, không thêm text khác. Nếu không tìm thấy node liên quan, trả về [].`, outline, query, maxNodes)
}

func answerPrompt(question, contextBlock string) string {
	return fmt.Sprintf(`Bạn là trợ lý nhân sự của công ty. Hãy trả lời câu hỏi của nhân viên DỰA TRÊN thông tin tham khảo bên dưới. Trả lời ngắn gọn, chính xác, bằng tiếng Việt. Nếu thông tin tham khảo không đủ để trả lời, hãy nói rõ điều đó thay vì suy đoán.

%s

CÂU HỎI: %s`, contextBlock, question)
}
