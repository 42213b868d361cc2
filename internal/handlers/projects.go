package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sitebridgehq/sitebridge/internal/auth"
	"github.com/sitebridgehq/sitebridge/internal/erp"
	"github.com/sitebridgehq/sitebridge/internal/middleware"
	"github.com/sitebridgehq/sitebridge/internal/models"
	"github.com/sitebridgehq/sitebridge/internal/services"
	"github.com/sitebridgehq/sitebridge/pkg/metrics"
	"github.com/sitebridgehq/sitebridge/pkg/response"
)

const (
	featureProjectsRead   = "projects.read"
	featureProjectsBackup = "projects.backup"
)

// ProjectLister fetches the remote project register with a delegated
// credential. Swappable in tests.
type ProjectLister func(ctx context.Context, cred *erp.Credential) ([]erp.Project, error)

// DefaultProjectLister lists projects through the remote OData surface.
func DefaultProjectLister(clientTag string, timeout time.Duration) ProjectLister {
	return func(ctx context.Context, cred *erp.Credential) ([]erp.Project, error) {
		client, err := erp.ClientFromCredential(cred, clientTag, timeout)
		if err != nil {
			return nil, err
		}
		return client.ListProjects(ctx, cred)
	}
}

// ProjectsHandler serves the remote project register and backup jobs for
// tenant users.
type ProjectsHandler struct {
	broker    *auth.SessionBroker
	directory *services.DirectoryService
	metering  *services.MeteringService
	backups   *services.BackupService
	list      ProjectLister
}

// NewProjectsHandler constructs the handler.
func NewProjectsHandler(
	broker *auth.SessionBroker,
	directory *services.DirectoryService,
	metering *services.MeteringService,
	backups *services.BackupService,
	list ProjectLister,
) *ProjectsHandler {
	return &ProjectsHandler{
		broker:    broker,
		directory: directory,
		metering:  metering,
		backups:   backups,
		list:      list,
	}
}

type backupRequest struct {
	ProjectID   string               `json:"project_id" validate:"required"`
	ProjectName string               `json:"project_name"`
	Options     models.BackupOptions `json:"options"`
}

// List fetches the project register using the session's delegated
// credential. Gated by projects.read.
func (h *ProjectsHandler) List(c *gin.Context) {
	tenant := middleware.CurrentTenant(c)
	if err := h.ensureFeature(c, featureProjectsRead); err != nil {
		response.Error(c, err)
		return
	}
	c.Set(middleware.CtxFeatureKey, featureProjectsRead)

	cred, err := h.broker.DelegatedCredential(tenant.DelegatedCipher)
	if err != nil {
		response.Error(c, err)
		return
	}

	projects, err := h.list(requestContext(c), cred)
	if err != nil {
		metrics.RemoteCalls.WithLabelValues("projects", "failure").Inc()
		response.Error(c, err)
		return
	}
	metrics.RemoteCalls.WithLabelValues("projects", "success").Inc()
	h.meterRemote(c, tenant.OrgID, featureProjectsRead)

	response.Success(c, http.StatusOK, projects)
}

// QueueBackup registers a backup job for one project. Gated by
// projects.backup.
func (h *ProjectsHandler) QueueBackup(c *gin.Context) {
	var req backupRequest
	if !bindAndValidate(c, &req) {
		return
	}

	tenant := middleware.CurrentTenant(c)
	if err := h.ensureFeature(c, featureProjectsBackup); err != nil {
		response.Error(c, err)
		return
	}
	c.Set(middleware.CtxFeatureKey, featureProjectsBackup)

	job, err := h.backups.Queue(requestContext(c), services.QueueBackupInput{
		OrgID:       tenant.OrgID,
		CompanyID:   tenant.CompanyID,
		UserID:      tenant.UserID,
		ProjectID:   req.ProjectID,
		ProjectName: req.ProjectName,
		Options:     req.Options,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	h.meterRemote(c, tenant.OrgID, featureProjectsBackup)

	response.Success(c, http.StatusCreated, job)
}

// GetBackup returns one of the caller's backup jobs.
func (h *ProjectsHandler) GetBackup(c *gin.Context) {
	tenant := middleware.CurrentTenant(c)
	job, err := h.backups.Get(requestContext(c), c.Param("id"), tenant.OrgID, tenant.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, job)
}

func (h *ProjectsHandler) ensureFeature(c *gin.Context, feature string) error {
	tenant := middleware.CurrentTenant(c)
	err := h.directory.EnsureFeature(requestContext(c), tenant.OrgID, tenant.CompanyID, feature)
	if err != nil {
		metrics.FeatureChecks.WithLabelValues(feature, "deny").Inc()
		return err
	}
	metrics.FeatureChecks.WithLabelValues(feature, "allow").Inc()
	return nil
}

func (h *ProjectsHandler) meterRemote(c *gin.Context, orgID, feature string) {
	if h.metering == nil {
		return
	}
	// best effort; a metering failure never fails the request
	_ = h.metering.RecordRemoteCall(requestContext(c), orgID, feature)
}
