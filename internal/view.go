package internal

const LoadingText = "Loading..."

// View is everything the page templates render for one session.
type View struct {
	Username    string
	Balance     int
	ShowContent bool
	Images      []string

	UploadID      string
	ImageURL      string
	CaptionStatus CaptionStatus
	Description   string
	CaptionFailed bool
	CaptionError  string

	ShowPrompt    bool
	PromptText    string
	PromptDisplay string

	Generating        bool
	GenerationMessage string
	GenerationError   string
}

func (s *Session) View() *View {
	s.mu.Lock()
	defer s.mu.Unlock()

	view := &View{
		Username:          s.user.Username,
		Balance:           s.user.Balance,
		ShowContent:       s.user.HasExhibits(),
		Images:            append([]string(nil), s.user.TextToImage...),
		CaptionError:      s.captionError,
		Generating:        s.generating,
		GenerationMessage: s.generationMessage,
		GenerationError:   s.generationError,
	}

	if s.upload != nil {
		view.UploadID = s.upload.ID
		view.ImageURL = s.upload.FileURL
	}

	view.Description = LoadingText
	if s.job != nil {
		view.CaptionStatus = s.job.Status
		switch s.job.Status {
		case CaptionStatusSucceeded:
			view.Description = s.job.OutputText()
		case CaptionStatusFailed:
			view.CaptionFailed = true
			view.Description = CaptionFailedMessage
			if detail := s.job.DetailText(); detail != "" {
				view.Description += ": " + detail
			}
		}
	}

	if s.caption != "" {
		view.ShowPrompt = true
		view.PromptText = s.prompt
		view.PromptDisplay = LoadingText
		if view.CaptionStatus == CaptionStatusSucceeded {
			view.PromptDisplay = DisplayPrompt(s.prompt)
		}
	}

	return view
}
