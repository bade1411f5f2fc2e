package internal

type (
	User struct {
		Username    string   `json:"username"`
		Balance     int      `json:"balance"`
		Exhibits    []string `json:"exhibits"`
		TextToImage []string `json:"textToImage"`
	}

	// FileDescriptor is what the upload widget reports for every stored file.
	FileDescriptor struct {
		FileURL  string `json:"fileUrl"`
		FilePath string `json:"filePath,omitempty"`
	}

	UploadedImage struct {
		ID      string
		FileURL string
	}

	CaptionStatus string

	CaptionJob struct {
		ID     string        `json:"uuid"`
		Status CaptionStatus `json:"status"`
		Output *string       `json:"output,omitempty"`
		Detail *string       `json:"detail,omitempty"`
	}

	CaptionInputs struct {
		ClipModelName string `json:"clip_model_name"`
		Image         string `json:"image"`
		Mode          string `json:"mode"`
	}

	CaptionRequest struct {
		Inputs CaptionInputs `json:"inputs"`
	}

	GenerationRequest struct {
		Prompt      string `json:"prompt"`
		ExhibitName string `json:"exhibit_name"`
		Samples     int    `json:"n_samples"`
		Seed        int    `json:"seed"`
	}
)

const (
	CaptionStatusPending   CaptionStatus = "pending"
	CaptionStatusSucceeded CaptionStatus = "succeeded"
	CaptionStatusFailed    CaptionStatus = "failed"
)

func (s CaptionStatus) Terminal() bool {
	return s == CaptionStatusSucceeded || s == CaptionStatusFailed
}

func (j *CaptionJob) OutputText() string {
	if j == nil || j.Output == nil {
		return ""
	}
	return *j.Output
}

func (j *CaptionJob) DetailText() string {
	if j == nil || j.Detail == nil {
		return ""
	}
	return *j.Detail
}

func (u *User) HasExhibits() bool {
	return u != nil && len(u.Exhibits) > 0
}
