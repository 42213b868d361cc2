package handlers_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	apitest "github.com/sitebridgehq/sitebridge/internal/handlers/testutil"
	"github.com/sitebridgehq/sitebridge/internal/models"
)

func TestHelpdeskChatRoundTrip(t *testing.T) {
	env := apitest.NewEnv(t)
	env.SeedTenant(func(org *models.Organization, company *models.Company) {
		company.AssistantAPIKey = "sk-acme-test"
	})
	tenant := env.Login("ACME-1", "jwhite", "pw")
	env.Completer.Reply = "Check the delegated credential expiry."

	w := env.Request(http.MethodPost, "/api/user/helpdesk/chat", map[string]string{
		"question": "Why does the project list 401?",
	}, tenant.Token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var conversation models.HelpdeskConversation
	apitest.DecodeInto(t, apitest.DecodeResponse(t, w).Data, &conversation)
	require.Len(t, conversation.Messages, 2)
	require.Equal(t, "user", conversation.Messages[0].Sender)
	require.Equal(t, "assistant", conversation.Messages[1].Sender)
	require.Equal(t, "Check the delegated credential expiry.", conversation.Messages[1].Text)
	require.Equal(t, "sk-acme-test", env.Completer.LastKey)

	w = env.Request(http.MethodGet, "/api/user/helpdesk/conversations", nil, tenant.Token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	apitest.DecodeInto(t, apitest.DecodeResponse(t, w).Data, &conversation)
	require.Len(t, conversation.Messages, 2)

	w = env.Request(http.MethodDelete, "/api/user/helpdesk/conversations", nil, tenant.Token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.Request(http.MethodGet, "/api/user/helpdesk/conversations", nil, tenant.Token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	apitest.DecodeInto(t, apitest.DecodeResponse(t, w).Data, &conversation)
	require.Empty(t, conversation.Messages)
}

func TestHelpdeskRequiresAPIKey(t *testing.T) {
	env := apitest.NewEnv(t)
	env.SeedTenant(nil)
	tenant := env.Login("ACME-1", "jwhite", "pw")

	w := env.Request(http.MethodPost, "/api/user/helpdesk/chat", map[string]string{
		"question": "Anyone there?",
	}, tenant.Token)
	require.Equal(t, http.StatusForbidden, w.Code, w.Body.String())
	require.Equal(t, "FEATURE_DISABLED", apitest.DecodeResponse(t, w).Error.Code)
}

func TestHelpdeskHonoursFeatureOverride(t *testing.T) {
	env := apitest.NewEnv(t)
	env.SeedTenant(func(org *models.Organization, company *models.Company) {
		company.AssistantAPIKey = "sk-acme-test"
		company.Features = datatypes.NewJSONType(map[string]bool{"ai.helpdesk": false})
	})
	tenant := env.Login("ACME-1", "jwhite", "pw")

	w := env.Request(http.MethodPost, "/api/user/helpdesk/chat", map[string]string{
		"question": "Disabled?",
	}, tenant.Token)
	require.Equal(t, http.StatusForbidden, w.Code, w.Body.String())
	require.Equal(t, "FEATURE_DISABLED", apitest.DecodeResponse(t, w).Error.Code)
}

func TestHelpdeskFailedExchangeIsNotPersisted(t *testing.T) {
	env := apitest.NewEnv(t)
	env.SeedTenant(func(org *models.Organization, company *models.Company) {
		company.AssistantAPIKey = "sk-acme-test"
	})
	tenant := env.Login("ACME-1", "jwhite", "pw")
	env.Completer.Err = errors.New("assistant upstream failed")

	w := env.Request(http.MethodPost, "/api/user/helpdesk/chat", map[string]string{
		"question": "Hello?",
	}, tenant.Token)
	require.Equal(t, http.StatusInternalServerError, w.Code, w.Body.String())

	env.Completer.Err = nil
	w = env.Request(http.MethodGet, "/api/user/helpdesk/conversations", nil, tenant.Token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var conversation models.HelpdeskConversation
	apitest.DecodeInto(t, apitest.DecodeResponse(t, w).Data, &conversation)
	require.Empty(t, conversation.Messages)
}
