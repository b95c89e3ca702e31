package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yae-assistant/yae/internal/model"
)

func TestProfiles_For(t *testing.T) {
	tool := &recordingTool{}
	profiles := Profiles{
		Text:  TextProfile(nil, "local", tool),
		Voice: VoiceProfile(nil, "remote"),
	}

	tests := []struct {
		name      string
		iface     model.Interface
		wantModel string
		wantTools int
	}{
		{name: "text", iface: model.InterfaceText, wantModel: "local", wantTools: 1},
		{name: "voice", iface: model.InterfaceVoice, wantModel: "remote", wantTools: 0},
		{name: "unset defaults to text", iface: "", wantModel: "local", wantTools: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := profiles.For(tt.iface)
			assert.Equal(t, tt.wantModel, p.Model)
			assert.Len(t, p.Tools, tt.wantTools)
			assert.NotEmpty(t, p.Instructions)
		})
	}
}

func TestProfile_Request(t *testing.T) {
	p := VoiceProfile(nil, "remote")
	req := p.Request([]ChatMessage{{Role: RoleUser, Content: "hi"}})

	assert.Equal(t, "remote", req.Model)
	assert.Equal(t, voiceInstructions, req.System)
	assert.Equal(t, p.MaxTokens, req.MaxTokens)
	assert.Len(t, req.Messages, 1)
	assert.Empty(t, req.Tools)
}
