package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	apitest "github.com/sitebridgehq/sitebridge/internal/handlers/testutil"
	"github.com/sitebridgehq/sitebridge/internal/models"
)

func openTicket(t *testing.T, env *apitest.Env, token, subject string) models.Ticket {
	t.Helper()

	w := env.Request(http.MethodPost, "/api/user/tickets", map[string]string{
		"subject":  subject,
		"priority": "high",
		"text":     "The project list times out since this morning.",
	}, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var ticket models.Ticket
	apitest.DecodeInto(t, apitest.DecodeResponse(t, w).Data, &ticket)
	require.Equal(t, "open", ticket.Status)
	require.Len(t, ticket.Messages, 1)
	return ticket
}

func TestTicketConversationFlow(t *testing.T) {
	env := apitest.NewEnv(t)
	env.SeedTenant(nil)
	tenant := env.Login("ACME-1", "jwhite", "pw")
	admin := env.LoginAdmin()

	ticket := openTicket(t, env, tenant.Token, "Project list broken")

	w := env.Request(http.MethodGet, "/api/user/tickets", nil, tenant.Token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var mine []models.Ticket
	apitest.DecodeInto(t, apitest.DecodeResponse(t, w).Data, &mine)
	require.Len(t, mine, 1)

	w = env.Request(http.MethodGet, "/api/admin/tickets?status=open", nil, admin.Token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var queue []models.Ticket
	apitest.DecodeInto(t, apitest.DecodeResponse(t, w).Data, &queue)
	require.Len(t, queue, 1)

	// An admin reply moves the ticket to in_progress.
	w = env.Request(http.MethodPost, "/api/admin/tickets/"+ticket.ID+"/reply", map[string]string{
		"text": "We are looking into it.",
	}, admin.Token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated models.Ticket
	apitest.DecodeInto(t, apitest.DecodeResponse(t, w).Data, &updated)
	require.Equal(t, "in_progress", updated.Status)

	w = env.Request(http.MethodGet, "/api/user/tickets/"+ticket.ID, nil, tenant.Token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	apitest.DecodeInto(t, apitest.DecodeResponse(t, w).Data, &updated)
	require.Len(t, updated.Messages, 2)
	require.Equal(t, "admin", updated.Messages[1].Sender)

	w = env.Request(http.MethodPost, "/api/user/tickets/"+ticket.ID+"/reply", map[string]string{
		"text": "Thanks, still failing for us.",
	}, tenant.Token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.Request(http.MethodPut, "/api/admin/tickets/"+ticket.ID+"/status", map[string]string{
		"status":   "done",
		"priority": "urgent",
	}, admin.Token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	apitest.DecodeInto(t, apitest.DecodeResponse(t, w).Data, &updated)
	require.Equal(t, "done", updated.Status)
	require.Equal(t, "urgent", updated.Priority)
}

func TestTicketsAreOrgScoped(t *testing.T) {
	env := apitest.NewEnv(t)
	env.SeedTenant(nil)
	tenant := env.Login("ACME-1", "jwhite", "pw")
	ticket := openTicket(t, env, tenant.Token, "Only ours")

	otherOrg := &models.Organization{
		Name: "Meridian Build",
		License: models.License{
			Plan:             models.PlanMonthly,
			Active:           true,
			CurrentPeriodEnd: env.Clock.Now().AddDate(0, 1, 0).Unix(),
		},
	}
	require.NoError(t, env.DB.Create(otherOrg).Error)
	require.NoError(t, env.DB.Create(&models.Company{
		OrgID:             otherOrg.ID,
		Code:              "MER-1",
		BaseURL:           "https://erp.meridian.test/itwo40/services",
		RemoteCompanyCode: "020",
	}).Error)

	other := env.Login("MER-1", "asmith", "pw")

	w := env.Request(http.MethodGet, "/api/user/tickets/"+ticket.ID, nil, other.Token)
	require.Equal(t, http.StatusNotFound, w.Code, w.Body.String())

	w = env.Request(http.MethodGet, "/api/user/tickets", nil, other.Token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var mine []models.Ticket
	apitest.DecodeInto(t, apitest.DecodeResponse(t, w).Data, &mine)
	require.Empty(t, mine)
}

func TestTicketsAreUserScoped(t *testing.T) {
	env := apitest.NewEnv(t)
	env.SeedTenant(nil)
	alice := env.Login("ACME-1", "alice", "pw")
	ticket := openTicket(t, env, alice.Token, "Mine alone")

	// an org-mate must not see or join the conversation
	bob := env.Login("ACME-1", "bob", "pw")

	w := env.Request(http.MethodGet, "/api/user/tickets/"+ticket.ID, nil, bob.Token)
	require.Equal(t, http.StatusNotFound, w.Code, w.Body.String())

	w = env.Request(http.MethodPost, "/api/user/tickets/"+ticket.ID+"/reply", map[string]string{
		"text": "joining in",
	}, bob.Token)
	require.Equal(t, http.StatusNotFound, w.Code, w.Body.String())

	w = env.Request(http.MethodGet, "/api/user/tickets", nil, bob.Token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var mine []models.Ticket
	apitest.DecodeInto(t, apitest.DecodeResponse(t, w).Data, &mine)
	require.Empty(t, mine)
}

func TestTicketRoutesRejectAdmins(t *testing.T) {
	env := apitest.NewEnv(t)
	admin := env.LoginAdmin()

	w := env.Request(http.MethodGet, "/api/user/tickets", nil, admin.Token)
	require.Equal(t, http.StatusForbidden, w.Code, w.Body.String())
	require.Equal(t, "ORG_USER_REQUIRED", apitest.DecodeResponse(t, w).Error.Code)
}
