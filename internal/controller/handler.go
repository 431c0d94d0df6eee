package controller

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/sharetube/tuneverse/internal/repository/connection"
	"github.com/sharetube/tuneverse/internal/service/room"
	"github.com/sharetube/tuneverse/pkg/ctxlogger"
	"github.com/sharetube/tuneverse/pkg/rest"
	"github.com/sharetube/tuneverse/pkg/wsconn"
)

func (c controller) serveWS(w http.ResponseWriter, r *http.Request) {
	ident, err := c.verifier.Verify(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		c.logger.InfoContext(r.Context(), "failed to verify identity", "error", err)
		rest.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	ws, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to upgrade to websocket", "error", err)
		return
	}

	conn := wsconn.New(uuid.NewString(), ws, c.connCfg)
	defer conn.Close()

	ctx := ctxlogger.AppendCtx(r.Context(), slog.String("conn_id", conn.Id()))
	if err := c.connRepo.Add(conn, connection.Session{
		UserId:   ident.UserId,
		Username: ident.Username,
		Verified: ident.Verified,
	}); err != nil {
		c.logger.WarnContext(ctx, "failed to register connection", "error", err)
		return
	}
	defer c.disconnect(ctx, conn.Id())

	c.logger.InfoContext(ctx, "connection opened", "user_id", ident.UserId, "verified", ident.Verified)

	if err := c.wsmux.ServeConn(ctx, conn); err != nil {
		c.logger.InfoContext(ctx, "connection closed", "error", err)
	}
}

// disconnect runs the implicit leave before the mapping is dropped, so the
// service still resolves the connection's room.
func (c controller) disconnect(ctx context.Context, connId string) {
	ctx = context.WithoutCancel(ctx)

	if err := c.roomService.DisconnectMember(ctx, &room.DisconnectMemberParams{ConnId: connId}); err != nil {
		c.logger.WarnContext(ctx, "failed to disconnect member", "error", err)
	}

	if _, err := c.connRepo.Remove(connId); err != nil {
		c.logger.WarnContext(ctx, "failed to remove connection", "error", err)
	}
}
