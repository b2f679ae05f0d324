package gateway

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noesis-run/noesis/internal/metaops"
)

func (g *Gateway) handleStatus(c *gin.Context) {
	respond(c, http.StatusOK, g.rt.Status())
}

func (g *Gateway) handleHostVitals(c *gin.Context) {
	respond(c, http.StatusOK, g.rt.HostVitals())
}

func (g *Gateway) handleVerify(c *gin.Context) {
	result, err := g.rt.VerifyLogged(c.Request.Context())
	if err != nil {
		respond(c, http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	respond(c, statusFor(result.Satisfied()), result)
}

func (g *Gateway) handleVerifyReadonly(c *gin.Context) {
	result, err := g.rt.Verify()
	if err != nil {
		respond(c, http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	respond(c, statusFor(result.Satisfied()), result)
}

func statusFor(satisfied bool) int {
	if satisfied {
		return http.StatusOK
	}
	return http.StatusConflict
}

func (g *Gateway) handleSessionStart(c *gin.Context) {
	var body struct {
		Partner string `json:"partner" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respond(c, http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	state, err := g.rt.SessionStart(body.Partner)
	if err != nil {
		respond(c, http.StatusPreconditionFailed, gin.H{"error": err.Error()})
		return
	}
	respond(c, http.StatusOK, state)
}

func (g *Gateway) handleSessionEnd(c *gin.Context) {
	state, err := g.rt.SessionEnd()
	if err != nil {
		respond(c, http.StatusPreconditionFailed, gin.H{"error": err.Error()})
		return
	}
	respond(c, http.StatusOK, state)
}

func (g *Gateway) handleRecharge(c *gin.Context) {
	var body struct {
		Amount float64 `json:"amount"`
	}
	_ = c.ShouldBindJSON(&body)
	result, err := g.rt.Recharge(body.Amount)
	if err != nil {
		respond(c, http.StatusPreconditionFailed, gin.H{"error": err.Error()})
		return
	}
	respond(c, http.StatusOK, result)
}

func (g *Gateway) handleOpExec(c *gin.Context) {
	id := c.Param("id")
	var params map[string]any
	_ = c.ShouldBindJSON(&params)
	result, err := g.rt.OpExec(id, params)
	if err != nil {
		respond(c, http.StatusPreconditionFailed, gin.H{"error": err.Error()})
		return
	}
	if !result.Success {
		respond(c, http.StatusConflict, result)
		return
	}
	respond(c, http.StatusOK, result)
}

func (g *Gateway) handleAgentForceCycle(c *gin.Context) {
	outcome, err := g.rt.AgentForceCycle()
	if err != nil {
		respond(c, http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	respond(c, http.StatusOK, outcome)
}

func (g *Gateway) handleAgentWake(c *gin.Context) {
	if err := g.rt.AgentWake(); err != nil {
		respond(c, http.StatusPreconditionFailed, gin.H{"error": err.Error()})
		return
	}
	respond(c, http.StatusOK, gin.H{"status": "awake"})
}

func (g *Gateway) handleAgentSleep(c *gin.Context) {
	if err := g.rt.AgentSleep(); err != nil {
		respond(c, http.StatusPreconditionFailed, gin.H{"error": err.Error()})
		return
	}
	respond(c, http.StatusOK, gin.H{"status": "asleep"})
}

func (g *Gateway) handleSnapshotCreate(c *gin.Context) {
	var body struct {
		Description string `json:"description"`
	}
	_ = c.ShouldBindJSON(&body)
	manifest, err := g.rt.SnapshotCreate(body.Description)
	if err != nil {
		respond(c, http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	respond(c, http.StatusCreated, manifest)
}

func (g *Gateway) handleSnapshotList(c *gin.Context) {
	manifests, err := g.rt.SnapshotList()
	if err != nil {
		respond(c, http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	respond(c, http.StatusOK, manifests)
}

func (g *Gateway) handleSnapshotRestore(c *gin.Context) {
	events, err := g.rt.SnapshotRestore(c.Param("id"))
	if err != nil {
		respond(c, http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	respond(c, http.StatusOK, events)
}

func (g *Gateway) handleMetaDefine(c *gin.Context) {
	var req metaops.DefineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond(c, http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	op, err := g.rt.MetaDefine(req)
	if err != nil {
		respond(c, http.StatusPreconditionFailed, gin.H{"error": err.Error()})
		return
	}
	respond(c, http.StatusCreated, op)
}

func (g *Gateway) handleMetaCompose(c *gin.Context) {
	var req metaops.ComposeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond(c, http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	op, err := g.rt.MetaCompose(req)
	if err != nil {
		respond(c, http.StatusPreconditionFailed, gin.H{"error": err.Error()})
		return
	}
	respond(c, http.StatusCreated, op)
}

func (g *Gateway) handleMetaSpecialize(c *gin.Context) {
	var req metaops.SpecializeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond(c, http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	op, err := g.rt.MetaSpecialize(req)
	if err != nil {
		respond(c, http.StatusPreconditionFailed, gin.H{"error": err.Error()})
		return
	}
	respond(c, http.StatusCreated, op)
}

// handleEventsStream upgrades to a websocket and pushes every newly
// appended event as JSON until the client disconnects.
func (g *Gateway) handleEventsStream(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ch, unsubscribe := g.rt.SM.Subscribe()
	defer unsubscribe()

	ctx := r.Context()
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
