package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"casei/internal/models"
	"casei/internal/services"
)

// EntityHandler serves the per content type endpoints. Reads go to the live
// tables; writes never touch them and instead open a change request.
type EntityHandler struct {
	publishedService services.PublishedServicer
	changeService    services.ChangeServicer
	auditService     services.AuditServicer
}

// NewEntityHandler creates a new EntityHandler.
func NewEntityHandler(publishedService services.PublishedServicer, changeService services.ChangeServicer, auditService services.AuditServicer) *EntityHandler {
	return &EntityHandler{publishedService: publishedService, changeService: changeService, auditService: auditService}
}

// List returns the published rows of a content type
// @Summary     List published objects
// @Description Any query parameter filters by column equality
// @Tags        entities
// @Produce     json
// @Param       slug path string true "Content type, e.g. campaign"
// @Success     200 {object} Response "Published objects"
// @Failure     400 {object} ErrorResponse "Unknown filter"
// @Router      /{slug} [get]
func (h *EntityHandler) List(contentType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		data, err := h.publishedService.List(c.Request.Context(), contentType, c.Request.URL.Query())
		if err != nil {
			respondWithError(c, err)
			return
		}
		respond(c, http.StatusOK, "", data)
	}
}

// Get returns one published row
// @Summary     Get published object
// @Tags        entities
// @Produce     json
// @Param       slug path string true "Content type"
// @Param       id   path string true "Object UUID"
// @Success     200 {object} Response "Published object"
// @Failure     404 {object} ErrorResponse "Not found"
// @Router      /{slug}/{id} [get]
func (h *EntityHandler) Get(contentType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := parsePathID(c, "id")
		if err != nil {
			respondWithError(c, err)
			return
		}
		obj, err := h.publishedService.Get(contentType, id)
		if err != nil {
			respondWithError(c, err)
			return
		}
		respond(c, http.StatusOK, "", obj)
	}
}

// Create opens a Create change request
// @Summary     Propose a new object
// @Tags        entities
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       slug    path string true "Content type"
// @Param       request body object true "Object fields"
// @Success     201 {object} Response{data=models.Change} "Change request created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} DetailResponse "Unauthorized"
// @Router      /{slug} [post]
func (h *EntityHandler) Create(contentType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		h.propose(c, contentType, models.ChangeActionCreate, nil, true)
	}
}

// Update opens an Update change request
// @Summary     Propose an edit
// @Tags        entities
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       slug    path string true "Content type"
// @Param       id      path string true "Object UUID"
// @Param       request body object true "Changed fields"
// @Success     201 {object} Response{data=models.Change} "Change request created"
// @Failure     404 {object} ErrorResponse "Object not found"
// @Router      /{slug}/{id} [patch]
func (h *EntityHandler) Update(contentType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := parsePathID(c, "id")
		if err != nil {
			respondWithError(c, err)
			return
		}
		h.propose(c, contentType, models.ChangeActionUpdate, &id, true)
	}
}

// Delete opens a Delete change request
// @Summary     Propose a deletion
// @Tags        entities
// @Produce     json
// @Security    BearerAuth
// @Param       slug path string true "Content type"
// @Param       id   path string true "Object UUID"
// @Success     201 {object} Response{data=models.Change} "Change request created"
// @Failure     404 {object} ErrorResponse "Object not found"
// @Router      /{slug}/{id} [delete]
func (h *EntityHandler) Delete(contentType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := parsePathID(c, "id")
		if err != nil {
			respondWithError(c, err)
			return
		}
		h.propose(c, contentType, models.ChangeActionDelete, &id, false)
	}
}

func (h *EntityHandler) propose(c *gin.Context, contentType string, action models.ChangeAction, objectID *string, withBody bool) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	update := map[string]interface{}{}
	if withBody {
		if err := c.ShouldBindJSON(&update); err != nil {
			respondWithError(c, bindError(err))
			return
		}
	}

	change, err := h.changeService.CreateChange(c.Request.Context(), userID, contentType, action, objectID, update)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, models.AuditCreateChange, "change", change.ID, c.ClientIP(),
		map[string]interface{}{"content_type": contentType, "action": action})

	respond(c, http.StatusCreated, "Change request created", change)
}

// RegisterEntityRoutes mounts the list, detail and proposal endpoints of
// every registered content type. write guards the proposal endpoints.
func RegisterEntityRoutes(public, protected *gin.RouterGroup, h *EntityHandler, names []string, write ...gin.HandlerFunc) {
	for _, name := range names {
		path := "/" + name
		public.GET(path, h.List(name))
		public.GET(path+"/:id", h.Get(name))

		protected.POST(path, chain(write, h.Create(name))...)
		protected.PUT(path+"/:id", chain(write, h.Update(name))...)
		protected.PATCH(path+"/:id", chain(write, h.Update(name))...)
		protected.DELETE(path+"/:id", chain(write, h.Delete(name))...)
	}
}

func chain(guards []gin.HandlerFunc, handler gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(guards)+1)
	out = append(out, guards...)
	return append(out, handler)
}
