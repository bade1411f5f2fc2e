package internal

import "regexp"

// TargetToken is substituted by the generation service with the user's own likeness.
const TargetToken = "{target_token}"

var selfReference = regexp.MustCompile(`(?i)\bme\b`)

// EncodePrompt replaces the first whole-word "me", in any case, with TargetToken.
func EncodePrompt(prompt string) string {
	loc := selfReference.FindStringIndex(prompt)
	if loc == nil {
		return prompt
	}
	return prompt[:loc[0]] + TargetToken + prompt[loc[1]:]
}

// DisplayPrompt is the caption as shown to the user. It is never submitted.
func DisplayPrompt(caption string) string {
	return "me " + caption
}
