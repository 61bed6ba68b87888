package signal

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/dkeye/Gateway/internal/core"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn, logger *zerolog.Logger) {
	ticker := time.NewTicker(ctl.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			logger.Debug().Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				logger.Debug().Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.cfg.WriteWait)); err != nil {
				logger.Error().Err(err).Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logReadError(logger, err, "writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.cfg.WriteWait)); err != nil {
				logger.Error().Err(err).Msg("writePump set ping deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logReadError(logger, err, "writePump ping error")
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, h *core.Handle, c *WsSignalConn, logger *zerolog.Logger) {
	defer func() {
		logger.Info().Msg("readPump closing")
		ctl.Orch.Disconnect(h)
		c.Close()
		cancel()
	}()

	pongWait := ctl.cfg.PongWait()
	c.conn.SetReadLimit(ctl.cfg.ReadLimit)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logger.Error().Err(err).Msg("readPump set deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			logger.Debug().Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				logReadError(logger, err, "readPump read error")
				return
			}
			ctl.Orch.Dispatch(h, data)
		}
	}
}

// logReadError logs ordinary disconnects at info and everything else at error.
func logReadError(logger *zerolog.Logger, err error, msg string) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		logger.Warn().Err(err).Msg("message exceeded read limit")
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		logger.Info().Err(err).Msg("client disconnected")
	case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed), errors.Is(err, websocket.ErrCloseSent):
		logger.Info().Err(err).Msg("connection closed")
	default:
		logger.Error().Err(err).Msg(msg)
	}
}
