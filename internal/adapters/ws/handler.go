package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/JoniWarrior/Auction-System-Backend/internal/domain/auction"
	"github.com/JoniWarrior/Auction-System-Backend/internal/domain/shared"
	"github.com/JoniWarrior/Auction-System-Backend/internal/ports/inbound"
	"github.com/JoniWarrior/Auction-System-Backend/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// WsHandler manages WebSocket connections and message routing
type WsHandler struct {
	clients        map[string]*WsClient // clientID -> Client
	clientsMu      sync.RWMutex
	eventChannels  map[string]chan outbound.Event // clientID -> local event channel
	channelsMu     sync.RWMutex
	upgrader       websocket.Upgrader
	auctionService inbound.AuctionService
	bidService     inbound.BidService
	broadcaster    outbound.Broadcaster
	users          outbound.UserRepository
	logger         zerolog.Logger
}

type WsHandlerParams struct {
	Upgrader       websocket.Upgrader
	AuctionService inbound.AuctionService
	BidService     inbound.BidService
	Broadcaster    outbound.Broadcaster
	Users          outbound.UserRepository
	Logger         zerolog.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(params WsHandlerParams) *WsHandler {
	return &WsHandler{
		clients:        make(map[string]*WsClient),
		eventChannels:  make(map[string]chan outbound.Event),
		upgrader:       params.Upgrader,
		auctionService: params.AuctionService,
		bidService:     params.BidService,
		broadcaster:    params.Broadcaster,
		users:          params.Users,
		logger:         params.Logger.With().Str("component", "ws_handler").Logger(),
	}
}

// HandleWebSocket handles WebSocket connection upgrades
func (handler *WsHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userIDStr := r.URL.Query().Get("user_id")
	if userIDStr == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		http.Error(w, "invalid user_id format", http.StatusBadRequest)
		return
	}

	conn, err := handler.upgrader.Upgrade(w, r, nil)
	if err != nil {
		handler.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	client := NewClient(WsClientParams{
		UserID:  userID,
		Conn:    conn,
		Handler: handler,
		Logger:  handler.logger,
	})

	handler.registerClient(client)

	eventChan := handler.createEventChannel(client.id)

	// Targeted events such as outbid notices arrive on the user's own channel
	if err := handler.broadcaster.SubscribeUser(r.Context(), userID, client.id, eventChan); err != nil {
		handler.logger.Error().Err(err).Str("client_id", client.id).Msg("Failed to subscribe to user channel")
	}

	client.Start()

	go handler.listenForClientEvents(client)

	go func() {
		<-client.ctx.Done()
		handler.unregisterClient(client)
	}()

	handler.logger.Info().Str("client_id", client.id).Str("user_id", client.userID.String()).Msg("WebSocket client connected")
}

// createEventChannel creates a local event channel for a client
func (handler *WsHandler) createEventChannel(clientID string) chan outbound.Event {
	handler.channelsMu.Lock()
	defer handler.channelsMu.Unlock()

	if eventChan, exists := handler.eventChannels[clientID]; exists {
		return eventChan
	}

	eventChan := make(chan outbound.Event, 100)
	handler.eventChannels[clientID] = eventChan

	handler.logger.Debug().Str("client_id", clientID).Msg("Created local event channel for client")
	return eventChan
}

func (handler *WsHandler) getEventChannel(clientID string) chan outbound.Event {
	handler.channelsMu.RLock()
	defer handler.channelsMu.RUnlock()

	return handler.eventChannels[clientID]
}

func (handler *WsHandler) removeEventChannel(clientID string) {
	handler.channelsMu.Lock()
	defer handler.channelsMu.Unlock()

	if _, exists := handler.eventChannels[clientID]; exists {
		// The broadcaster owns and closes the channel on the last unsubscribe
		delete(handler.eventChannels, clientID)
		handler.logger.Debug().Str("client_id", clientID).Msg("Removed local event channel for client")
	}
}

func (handler *WsHandler) registerClient(client *WsClient) {
	handler.clientsMu.Lock()
	defer handler.clientsMu.Unlock()
	handler.clients[client.id] = client
	handler.logger.Debug().Str("client_id", client.id).Int("total_clients", len(handler.clients)).Msg("Client registered")
}

func (handler *WsHandler) unregisterClient(client *WsClient) {
	handler.clientsMu.Lock()
	defer handler.clientsMu.Unlock()

	delete(handler.clients, client.id)

	// Dropping the user channel releases the client's pubsub connection once
	// no auction subscriptions remain
	if err := handler.broadcaster.UnsubscribeUser(context.Background(), client.userID, client.id); err != nil {
		handler.logger.Error().Err(err).Str("client_id", client.id).Msg("Failed to unsubscribe from user channel")
	}

	client.Stop()

	handler.removeEventChannel(client.id)

	handler.logger.Info().Str("client_id", client.id).Str("user_id", client.userID.String()).Int("total_clients", len(handler.clients)).Msg("WebSocket client disconnected")
}

// listenForClientEvents forwards redis events to the WebSocket connection
func (handler *WsHandler) listenForClientEvents(client *WsClient) {
	eventChan := handler.getEventChannel(client.id)
	if eventChan == nil {
		handler.logger.Error().Str("client_id", client.id).Msg("No event channel found for client - this should not happen")
		return
	}

	handler.logger.Info().Str("client_id", client.id).Msg("Event listener started for client")

	for {
		select {
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			wsMessage := handler.convertEventToMessage(event)

			if err := client.Send(wsMessage); err != nil {
				handler.logger.Error().
					Err(err).Str("client_id", client.id).Msg("Failed to send event to WebSocket client")
			} else {
				handler.logger.Debug().Str("client_id", client.id).Str("event_type", string(event.Type)).
					Msg("Sent event to WebSocket client")
			}

		case <-client.ctx.Done():
			handler.logger.Debug().Str("client_id", client.id).Msg("Client disconnected, stopping event listener")
			return
		}
	}
}

func (handler *WsHandler) HandleClientMessage(client *WsClient, msg *ClientMessage) error {
	switch msg.Type {
	case MessageTypeJoinAuction:
		return handler.handleJoinAuction(client, msg)

	case MessageTypeLeaveAuction:
		return handler.handleLeaveAuction(client, msg)

	case MessageTypePlaceBid:
		return handler.handlePlaceBid(client, msg)

	case MessageTypeCreateAuction:
		return handler.handleCreateAuction(client, msg)

	case MessageTypeCloseAuction:
		return handler.handleCloseAuction(client, msg)

	case MessageTypeCancelAuction:
		return handler.handleCancelAuction(client, msg)

	case MessageTypeGetAuction:
		return handler.handleGetAuction(client, msg)

	case MessageTypeListAuctions:
		return handler.handleListAuctions(client, msg)

	case MessageTypeGetHighestBid:
		return handler.handleGetHighestBid(client, msg)

	case MessageTypeStartBidding:
		return handler.handleBiddingIndicator(client, msg, true)

	case MessageTypeStopBidding:
		return handler.handleBiddingIndicator(client, msg, false)

	default:
		handler.logger.Warn().Str("client_id", client.id).Str("message_type", string(msg.Type)).Msg("Unknown message type from client")
		return shared.ErrUnknownMessageType
	}
}

func (handler *WsHandler) convertEventToMessage(event outbound.Event) *ServerMessage {
	switch event.Type {
	case outbound.EventTypeNewBid:
		return &ServerMessage{
			Type:      MessageTypeNewBid,
			AuctionID: &event.AuctionID,
			Data:      event.Data,
			Timestamp: event.Timestamp,
		}
	case outbound.EventTypeOutBid:
		return &ServerMessage{
			Type:      MessageTypeOutBid,
			AuctionID: &event.AuctionID,
			Data:      event.Data,
			Timestamp: event.Timestamp,
		}
	case outbound.EventTypeBiddingIndicator:
		return &ServerMessage{
			Type:      MessageTypeBiddingIndicator,
			AuctionID: &event.AuctionID,
			Data:      event.Data,
			Timestamp: event.Timestamp,
		}
	case outbound.EventTypeAuctionClosed:
		return &ServerMessage{
			Type:      MessageTypeAuctionClosed,
			AuctionID: &event.AuctionID,
			Data:      event.Data,
			Timestamp: event.Timestamp,
		}
	default:
		return &ServerMessage{
			Type:      MessageTypeAuctionUpdate,
			AuctionID: &event.AuctionID,
			Data:      event.Data,
			Timestamp: event.Timestamp,
		}
	}
}

// GetConnectedClients returns the number of connected clients
func (handler *WsHandler) GetConnectedClients() int {
	handler.clientsMu.RLock()
	defer handler.clientsMu.RUnlock()
	return len(handler.clients)
}

func (handler *WsHandler) handleJoinAuction(client *WsClient, msg *ClientMessage) error {
	ctx := context.Background()

	eventChan := handler.getEventChannel(client.id)
	if eventChan == nil {
		handler.logger.Error().Str("client_id", client.id).Msg("No event channel found for client")
		return shared.ErrClientChannelGone
	}

	if err := handler.broadcaster.Subscribe(ctx, *msg.AuctionID, client.id, eventChan); err != nil {
		handler.logger.Error().Err(err).Str("client_id", client.id).Str("auction_id", msg.AuctionID.String()).Msg("Failed to subscribe to auction")
		return err
	}

	response := NewServerMessage(MessageTypeAuctionUpdate)
	response.AuctionID = msg.AuctionID
	response.Data["status"] = "joined"

	handler.logger.Info().Str("client_id", client.id).Str("auction_id", msg.AuctionID.String()).Msg("Client joined auction")
	return client.Send(response)
}

// handleLeaveAuction handles unsubscription from auction events
func (handler *WsHandler) handleLeaveAuction(client *WsClient, msg *ClientMessage) error {
	ctx := context.Background()

	if err := handler.broadcaster.Unsubscribe(ctx, *msg.AuctionID, client.id); err != nil {
		return err
	}

	response := NewServerMessage(MessageTypeAuctionUpdate)
	response.AuctionID = msg.AuctionID
	response.Data["status"] = "left"

	handler.logger.Info().Str("client_id", client.id).Str("auction_id", msg.AuctionID.String()).Msg("Client left auction")
	return client.Send(response)
}

// handlePlaceBid handles bid placement. The bid amount comes from the payment
// hold referenced by transaction_id, not from the message.
func (handler *WsHandler) handlePlaceBid(client *WsClient, msg *ClientMessage) error {
	transactionID, err := msg.TransactionID()
	if err != nil {
		return err
	}

	ctx := context.Background()

	result, err := handler.bidService.PlaceBid(ctx, inbound.PlaceBidRequest{
		AuctionID:     *msg.AuctionID,
		BidderID:      client.userID,
		TransactionID: transactionID,
	})
	if err != nil {
		errorMsg := NewErrorMessage(err.Error(), msg.AuctionID)
		return client.Send(errorMsg)
	}

	handler.logger.Info().
		Str("bid_id", result.Bid.ID.String()).
		Str("auction_id", msg.AuctionID.String()).
		Str("user_id", client.userID.String()).
		Str("amount", result.Bid.Amount.String()).
		Msg("Bid placed successfully")

	return nil
}

// handleCreateAuction handles auction creation
func (handler *WsHandler) handleCreateAuction(client *WsClient, msg *ClientMessage) error {
	ctx := context.Background()

	itemIDStr, ok := msg.Data["item_id"].(string)
	if !ok {
		return shared.ErrItemIDRequired
	}

	itemID, err := uuid.Parse(itemIDStr)
	if err != nil {
		return shared.ErrItemIDRequired
	}

	endTimeStr, ok := msg.Data["end_time"].(string)
	if !ok {
		return shared.ErrEndTimeRequired
	}

	startingPrice, ok := msg.Data["starting_price"].(float64)
	if !ok {
		return shared.ErrStartingPriceNeeded
	}

	auc, err := handler.auctionService.CreateAuction(ctx, inbound.CreateAuctionRequest{
		ItemID:        itemID,
		OwnerID:       client.userID,
		EndTime:       endTimeStr,
		StartingPrice: decimal.NewFromFloat(startingPrice),
	})
	if err != nil {
		errorMsg := NewErrorMessage(err.Error(), nil)
		return client.Send(errorMsg)
	}

	response := handler.createAuctionResponse(auc, MessageTypeAuctionCreated, nil)

	handler.logger.Info().Str("auction_id", auc.ID.String()).Str("user_id", client.userID.String()).Msg("Auction created successfully")
	return client.Send(response)
}

// handleCloseAuction settles an auction at the owner's request
func (handler *WsHandler) handleCloseAuction(client *WsClient, msg *ClientMessage) error {
	ctx := context.Background()

	result, err := handler.auctionService.CloseAuction(ctx, *msg.AuctionID, &client.userID)
	if err != nil {
		errorMsg := NewErrorMessage(err.Error(), msg.AuctionID)
		return client.Send(errorMsg)
	}

	response := NewServerMessage(MessageTypeAuctionClosed)
	response.AuctionID = msg.AuctionID
	response.Data["status"] = result.Status
	response.Data["final_price"] = result.WinningAmount.String()
	if result.WinnerID != nil {
		response.Data["winner_id"] = result.WinnerID.String()
	}

	handler.logger.Info().Str("auction_id", msg.AuctionID.String()).Str("user_id", client.userID.String()).Msg("Auction closed by owner")
	return client.Send(response)
}

// handleCancelAuction cancels an auction at the owner's request
func (handler *WsHandler) handleCancelAuction(client *WsClient, msg *ClientMessage) error {
	ctx := context.Background()

	if err := handler.auctionService.CancelAuction(ctx, *msg.AuctionID, client.userID); err != nil {
		errorMsg := NewErrorMessage(err.Error(), msg.AuctionID)
		return client.Send(errorMsg)
	}

	response := NewServerMessage(MessageTypeAuctionUpdate)
	response.AuctionID = msg.AuctionID
	response.Data["status"] = string(auction.StatusCancelled)

	handler.logger.Info().Str("auction_id", msg.AuctionID.String()).Str("user_id", client.userID.String()).Msg("Auction cancelled by owner")
	return client.Send(response)
}

// handleGetAuction handles getting auction details
func (handler *WsHandler) handleGetAuction(client *WsClient, msg *ClientMessage) error {
	ctx := context.Background()

	auc, err := handler.auctionService.GetAuction(ctx, *msg.AuctionID)
	if err != nil {
		errorMsg := NewErrorMessage(err.Error(), msg.AuctionID)
		return client.Send(errorMsg)
	}

	response := handler.createAuctionResponse(auc, MessageTypeAuctionUpdate, msg.AuctionID)

	return client.Send(response)
}

// handleListAuctions handles listing auctions
func (handler *WsHandler) handleListAuctions(client *WsClient, msg *ClientMessage) error {
	ctx := context.Background()

	// Zero or negative values fall back to the defaults; limit divides below
	limit := 10
	if limitVal, ok := msg.Data["limit"].(float64); ok && int(limitVal) > 0 {
		limit = int(limitVal)
	}

	offset := 0
	if offsetVal, ok := msg.Data["offset"].(float64); ok && int(offsetVal) > 0 {
		offset = int(offsetVal)
	}

	auctionRequest := inbound.ListAuctionsRequest{
		Page:     offset/limit + 1, // Convert offset to page
		PageSize: limit,
		Status:   nil,
	}

	auctions, err := handler.auctionService.ListAuctions(ctx, auctionRequest)
	if err != nil {
		errorMsg := NewErrorMessage(err.Error(), nil)
		return client.Send(errorMsg)
	}

	response := NewServerMessage(MessageTypeAuctionUpdate)
	response.Data["auctions"] = auctions
	response.Data["count"] = len(auctions)

	return client.Send(response)
}

// handleGetHighestBid returns the current highest bid of an auction
func (handler *WsHandler) handleGetHighestBid(client *WsClient, msg *ClientMessage) error {
	ctx := context.Background()

	highest, err := handler.bidService.GetHighestBid(ctx, *msg.AuctionID)
	if err != nil {
		errorMsg := NewErrorMessage(err.Error(), msg.AuctionID)
		return client.Send(errorMsg)
	}

	response := NewServerMessage(MessageTypeAuctionUpdate)
	response.AuctionID = msg.AuctionID
	if highest != nil {
		response.Data["bid_id"] = highest.ID.String()
		response.Data["bidder_id"] = highest.BidderID.String()
		response.Data["amount"] = highest.Amount.String()
	}

	return client.Send(response)
}

// handleBiddingIndicator relays typing-style activity signals to everyone
// watching the auction
func (handler *WsHandler) handleBiddingIndicator(client *WsClient, msg *ClientMessage, isBidding bool) error {
	ctx := context.Background()

	if !handler.broadcaster.IsSubscribed(ctx, *msg.AuctionID, client.id) {
		return shared.ErrUserNotSubscribed
	}

	userName := ""
	if user, err := handler.users.GetByID(ctx, client.userID); err == nil {
		userName = user.Name
	}

	event := outbound.Event{
		Type:      outbound.EventTypeBiddingIndicator,
		AuctionID: *msg.AuctionID,
		Data: map[string]interface{}{
			"user_id":    client.userID.String(),
			"user_name":  userName,
			"is_bidding": isBidding,
		},
		Timestamp: time.Now().Unix(),
	}

	if err := handler.broadcaster.Publish(ctx, *msg.AuctionID, event); err != nil {
		handler.logger.Error().Err(err).Str("auction_id", msg.AuctionID.String()).Msg("Failed to publish bidding indicator")
		return err
	}

	return nil
}

func (handler *WsHandler) createAuctionResponse(auc *auction.Auction, msgType MessageType, auctionID *uuid.UUID) *ServerMessage {
	response := NewServerMessage(msgType)
	if auctionID != nil {
		response.AuctionID = auctionID
	}

	response.Data["auction_id"] = auc.ID
	response.Data["item_id"] = auc.ItemID
	response.Data["owner_id"] = auc.OwnerID
	response.Data["end_time"] = auc.EndTime.Format(time.RFC3339)
	response.Data["starting_price"] = auc.StartingPrice.String()
	response.Data["current_price"] = auc.CurrentPrice.String()
	response.Data["status"] = auc.Status

	return response
}
