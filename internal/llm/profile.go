package llm

import (
	"github.com/yae-assistant/yae/internal/model"
)

const (
	textInstructions = "You are talking to a human via text chat. Answer in plain text and use markdown formatting."

	voiceInstructions = "You are talking to a human via voice interface. Answer in plain text like you would in a " +
		"verbal conversation (e.g. don't use bullet points, tables or emojis) and keep your answers short and to " +
		"the point, as the user will hear them spoken aloud."
)

// Profile carries everything that differs between interface modes:
// the client and model to use, the instructions and the tools.
type Profile struct {
	Interface    model.Interface
	Client       Client
	Model        string
	Instructions string
	MaxTokens    int
	Temperature  float64
	Tools        []Tool
}

// TextProfile answers in markdown and may use tools.
func TextProfile(client Client, modelID string, tools ...Tool) Profile {
	return Profile{
		Interface:    model.InterfaceText,
		Client:       client,
		Model:        modelID,
		Instructions: textInstructions,
		MaxTokens:    2048,
		Temperature:  0.7,
		Tools:        tools,
	}
}

// VoiceProfile answers briefly in a spoken style, without tools.
func VoiceProfile(client Client, modelID string) Profile {
	return Profile{
		Interface:    model.InterfaceVoice,
		Client:       client,
		Model:        modelID,
		Instructions: voiceInstructions,
		MaxTokens:    512,
		Temperature:  0.6,
	}
}

// Request builds a completion request for the given dialogue.
func (p Profile) Request(messages []ChatMessage) *CompletionRequest {
	return &CompletionRequest{
		Model:       p.Model,
		System:      p.Instructions,
		Messages:    messages,
		MaxTokens:   p.MaxTokens,
		Temperature: p.Temperature,
		Tools:       p.Tools,
	}
}

// Profiles holds one profile per interface mode.
type Profiles struct {
	Text  Profile
	Voice Profile
}

// For selects the profile for an interface mode. Unknown modes get the text profile.
func (p Profiles) For(iface model.Interface) Profile {
	if iface == model.InterfaceVoice {
		return p.Voice
	}
	return p.Text
}
