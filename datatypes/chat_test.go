package datatypes

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConversationValidate_Valid(t *testing.T) {
	conv := Conversation{
		{Role: RoleUser, Content: "Who teaches organic chemistry?"},
	}
	assert.NoError(t, conv.Validate())
}

func TestConversationValidate_MultiTurn(t *testing.T) {
	conv := Conversation{
		{Role: RoleUser, Content: "Any good physics professors?"},
		{Role: RoleAssistant, Content: "Dr. Chen has strong reviews."},
		{Role: RoleUser, Content: "What about for intro courses?"},
	}
	assert.NoError(t, conv.Validate())
}

func TestConversationValidate_Empty(t *testing.T) {
	conv := Conversation{}
	assert.Error(t, conv.Validate())
}

func TestConversationValidate_Nil(t *testing.T) {
	var conv Conversation
	assert.Error(t, conv.Validate())
}

func TestConversationValidate_BadRole(t *testing.T) {
	conv := Conversation{
		{Role: "moderator", Content: "hello"},
	}
	assert.Error(t, conv.Validate())
}

func TestConversationValidate_MissingRole(t *testing.T) {
	conv := Conversation{
		{Content: "hello"},
	}
	assert.Error(t, conv.Validate())
}

func TestConversationValidate_ContentTooLarge(t *testing.T) {
	conv := Conversation{
		{Role: RoleUser, Content: strings.Repeat("a", MaxMessageContentBytes+1)},
	}
	assert.Error(t, conv.Validate())
}

func TestConversationValidate_ContentAtLimit(t *testing.T) {
	conv := Conversation{
		{Role: RoleUser, Content: strings.Repeat("a", MaxMessageContentBytes)},
	}
	assert.NoError(t, conv.Validate())
}

func TestConversationValidate_TooManyMessages(t *testing.T) {
	conv := make(Conversation, MaxMessagesPerConversation+1)
	for i := range conv {
		conv[i] = Message{Role: RoleUser, Content: "hi"}
	}
	assert.Error(t, conv.Validate())
}

func TestSources_PreservesOrder(t *testing.T) {
	matches := []RetrievedMatch{
		{Id: "Dr. Smith", Score: 0.92},
		{Id: "Dr. Jones", Score: 0.87},
		{Id: "Dr. Chen", Score: 0.81},
	}
	sources := Sources(matches)
	assert.Len(t, sources, 3)
	assert.Equal(t, "Dr. Smith", sources[0].Source)
	assert.Equal(t, "Dr. Jones", sources[1].Source)
	assert.Equal(t, "Dr. Chen", sources[2].Source)
	assert.Equal(t, 0.92, sources[0].Score)
}

func TestSources_Empty(t *testing.T) {
	assert.Nil(t, Sources(nil))
	assert.Nil(t, Sources([]RetrievedMatch{}))
}
