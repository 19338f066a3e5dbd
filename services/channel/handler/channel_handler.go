package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"bidio/internal/channel"
	"bidio/internal/models"
	"bidio/services/channel/helpers"
	"bidio/utils"

	"github.com/gin-gonic/gin"
)

//go:generate mockgen -source=channel_handler.go -destination=mock_handler.go -package=handler

type ChannelRegistry interface {
	GetChannel(name string) (*channel.Channel, bool)
	SetChannel(ctx context.Context, name string) (*channel.Channel, error)
	Channels() []string
}

type ChannelHandler struct {
	channels ChannelRegistry
}

func NewChannelHandler(channels ChannelRegistry) *ChannelHandler {
	return &ChannelHandler{channels: channels}
}

// lookup resolves :name, answering 404 itself when the channel is unknown
func (h *ChannelHandler) lookup(c *gin.Context, handlerName string) (*channel.Channel, bool) {
	name := c.Param("name")
	ch, ok := h.channels.GetChannel(name)
	if !ok {
		utils.JSONError(c, http.StatusNotFound, fmt.Errorf("channel %q does not exist", name), "channel not found")
		utils.Warn(handlerName+": unknown channel", map[string]any{"channel": name})
		return nil, false
	}
	return ch, true
}

// lookupStream is lookup plus a check of the :stream parameter
func (h *ChannelHandler) lookupStream(c *gin.Context, handlerName string) (*channel.Channel, bool) {
	ch, ok := h.lookup(c, handlerName)
	if !ok {
		return nil, false
	}
	if stream := c.Param("stream"); stream != ch.Stream() {
		utils.JSONError(c, http.StatusNotFound, fmt.Errorf("stream %q does not exist", stream), "stream not found")
		utils.Warn(handlerName+": unknown stream", map[string]any{"channel": ch.Name(), "stream": stream})
		return nil, false
	}
	return ch, true
}

// ListChannelsHandler handles GET /channels
func (h *ChannelHandler) ListChannelsHandler(c *gin.Context) {
	names := h.channels.Channels()
	resp := make([]helpers.ChannelResponse, 0, len(names))
	for _, name := range names {
		ch, ok := h.channels.GetChannel(name)
		if !ok {
			continue
		}
		resp = append(resp, helpers.ChannelResponse{
			Name:        ch.Name(),
			Stream:      ch.Stream(),
			Subscribers: ch.Subscribers(),
		})
	}
	utils.JSONResponse(c, http.StatusOK, resp, "channels retrieved successfully")
}

// StreamHandler handles GET /channels/:name/:stream as a server-sent event
// stream: one connect event with the connection id, then every packet
// broadcast on the channel.
func (h *ChannelHandler) StreamHandler(c *gin.Context) {
	ch, ok := h.lookupStream(c, "StreamHandler")
	if !ok {
		return
	}
	user, err := helpers.ParseUser(c)
	if err != nil {
		helpers.HandleBindError(c, "StreamHandler", err)
		return
	}

	conn := channel.NewConn(helpers.ConnID(c), user)
	feed, leave := ch.Connect(conn)
	defer leave()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Header(helpers.HeaderConn, conn.ID())
	c.SSEvent("connect", helpers.ConnectEvent{ID: conn.ID()})
	c.Writer.Flush()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case msg, open := <-feed:
			if !open {
				return false
			}
			c.SSEvent(ch.Stream(), msg)
			return true
		case <-ctx.Done():
			return false
		}
	})
}

// PacketHandler handles POST /channels/:name/:stream. The body is one wire
// packet; the reply packet is returned while the outcome is broadcast to
// the other subscribers.
func (h *ChannelHandler) PacketHandler(c *gin.Context) {
	ch, ok := h.lookupStream(c, "PacketHandler")
	if !ok {
		return
	}
	user, err := helpers.ParseUser(c)
	if err != nil {
		helpers.HandleBindError(c, "PacketHandler", err)
		return
	}
	raw, err := c.GetRawData()
	if err != nil {
		helpers.HandleBindError(c, "PacketHandler", err)
		return
	}

	conn := channel.NewConn(helpers.ConnID(c), user)
	reply := ch.Handle(c.Request.Context(), conn, string(raw))
	utils.JSONResponse(c, http.StatusOK, helpers.PacketResponse{Packet: reply}, "packet handled")
}

// CreateChannelHandler handles POST /admin/channels/:name
func (h *ChannelHandler) CreateChannelHandler(c *gin.Context) {
	ch, err := h.channels.SetChannel(c.Request.Context(), c.Param("name"))
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Error("CreateChannelHandler: failed to open channel", map[string]any{
			"channel": c.Param("name"),
			"error":   err.Error(),
		})
		return
	}

	resp := helpers.ChannelResponse{Name: ch.Name(), Stream: ch.Stream(), Subscribers: ch.Subscribers()}
	utils.JSONResponse(c, http.StatusCreated, resp, "channel ready")
	helpers.LogSuccess("CreateChannelHandler", "channel ready", map[string]any{"channel": ch.Name()})
}

// SetBidHandler handles PUT /admin/channels/:name/bids/:id
func (h *ChannelHandler) SetBidHandler(c *gin.Context) {
	ch, ok := h.lookup(c, "SetBidHandler")
	if !ok {
		return
	}
	id, err := helpers.ParseBidID(c)
	if err != nil {
		helpers.HandleBindError(c, "SetBidHandler", err)
		return
	}
	var data models.Doc
	if err := c.ShouldBindJSON(&data); err != nil {
		helpers.HandleBindError(c, "SetBidHandler", err)
		return
	}

	bid, err := ch.Bids().Set(c.Request.Context(), id, data)
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Error("SetBidHandler: failed to save bid", map[string]any{
			"channel": ch.Name(),
			"id":      id,
			"error":   err.Error(),
		})
		return
	}

	utils.JSONResponse(c, http.StatusOK, bid, "bid saved successfully")
	helpers.LogSuccess("SetBidHandler", "bid saved successfully", map[string]any{
		"channel": ch.Name(),
		"id":      id,
	})
}

// DeleteBidHandler handles DELETE /admin/channels/:name/bids/:id
func (h *ChannelHandler) DeleteBidHandler(c *gin.Context) {
	ch, ok := h.lookup(c, "DeleteBidHandler")
	if !ok {
		return
	}
	id, err := helpers.ParseBidID(c)
	if err != nil {
		helpers.HandleBindError(c, "DeleteBidHandler", err)
		return
	}

	if err := ch.Bids().Delete(c.Request.Context(), id); err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("DeleteBidHandler: failed to delete bid", map[string]any{"channel": ch.Name(), "id": id, "error": err.Error()})
		return
	}

	utils.JSONResponse(c, http.StatusOK, nil, "bid deleted successfully")
	helpers.LogSuccess("DeleteBidHandler", "bid deleted successfully", map[string]any{
		"channel": ch.Name(),
		"id":      id,
	})
}

// ClearBidsHandler handles DELETE /admin/channels/:name/bids
func (h *ChannelHandler) ClearBidsHandler(c *gin.Context) {
	ch, ok := h.lookup(c, "ClearBidsHandler")
	if !ok {
		return
	}

	if err := ch.Bids().Clear(c.Request.Context()); err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("ClearBidsHandler: failed to clear bids", map[string]any{"channel": ch.Name(), "error": err.Error()})
		return
	}

	utils.JSONResponse(c, http.StatusOK, nil, "bids cleared successfully")
	helpers.LogSuccess("ClearBidsHandler", "bids cleared successfully", map[string]any{"channel": ch.Name()})
}

// AdminPacketHandler handles POST /admin/channels/:name/stream. The packet
// runs with the server origin, so its outcome reaches every subscriber and
// updates may be forced.
func (h *ChannelHandler) AdminPacketHandler(c *gin.Context) {
	ch, ok := h.lookup(c, "AdminPacketHandler")
	if !ok {
		return
	}
	raw, err := c.GetRawData()
	if err != nil {
		helpers.HandleBindError(c, "AdminPacketHandler", err)
		return
	}

	reply := ch.Handle(c.Request.Context(), channel.ServerConn, string(raw))
	utils.JSONResponse(c, http.StatusOK, helpers.PacketResponse{Packet: reply}, "packet handled")
}
