package runware

// RunwareRequest - Runware imageInference task
type RunwareRequest struct {
	TaskType       string  `json:"taskType"`
	TaskUUID       string  `json:"taskUUID"`
	PositivePrompt string  `json:"positivePrompt"`
	Model          string  `json:"model"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	NumberResults  int     `json:"numberResults"`
	OutputType     string  `json:"outputType,omitempty"` // URL | base64Data
	OutputFormat   string  `json:"outputFormat"`
	Steps          int     `json:"steps,omitempty"`
	CFGScale       float64 `json:"CFGScale,omitempty"`
}

// RunwareResponse - Runware API 응답 구조체
type RunwareResponse struct {
	Data []struct {
		TaskType        string `json:"taskType"`
		TaskUUID        string `json:"taskUUID"`
		ImageURL        string `json:"imageURL"`
		ImageUUID       string `json:"imageUUID"`
		ImageBase64Data string `json:"imageBase64Data"`
	} `json:"data"`
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors,omitempty"`
	Error string `json:"error,omitempty"`
}

// errorMessage - 응답에 담긴 첫 번째 에러 메시지
func (r *RunwareResponse) errorMessage() string {
	if r.Error != "" {
		return r.Error
	}
	if len(r.Errors) > 0 {
		if r.Errors[0].Message != "" {
			return r.Errors[0].Message
		}
		return r.Errors[0].Code
	}
	return ""
}
