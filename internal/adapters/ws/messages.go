package ws

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/JoniWarrior/Auction-System-Backend/internal/domain/shared"

	"github.com/google/uuid"
)

type MessageType string

const (
	// Client to Server message types
	MessageTypeJoinAuction   MessageType = "joinAuction"
	MessageTypeLeaveAuction  MessageType = "leaveAuction"
	MessageTypePlaceBid      MessageType = "placeBid"
	MessageTypeCreateAuction MessageType = "createAuction"
	MessageTypeCloseAuction  MessageType = "closeAuction"
	MessageTypeCancelAuction MessageType = "cancelAuction"
	MessageTypeGetAuction    MessageType = "getAuction"
	MessageTypeListAuctions  MessageType = "listAuctions"
	MessageTypeGetHighestBid MessageType = "getHighestBid"
	MessageTypeStartBidding  MessageType = "startBidding"
	MessageTypeStopBidding   MessageType = "stopBidding"
	MessageTypePing          MessageType = "ping"

	// Server to Client message types
	MessageTypeNewBid           MessageType = "newBid"
	MessageTypeOutBid           MessageType = "outBid"
	MessageTypeBiddingIndicator MessageType = "biddingIndicator"
	MessageTypeAuctionClosed    MessageType = "auctionClosed"
	MessageTypeAuctionUpdate    MessageType = "auctionUpdate"
	MessageTypeAuctionCreated   MessageType = "auctionCreated"
	MessageTypeError            MessageType = "error"
	MessageTypePong             MessageType = "pong"
)

type ClientMessage struct {
	Type      MessageType            `json:"type"`
	AuctionID *uuid.UUID             `json:"auction_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

// ServerMessage represents a message sent from server to client
type ServerMessage struct {
	Type      MessageType            `json:"type"`
	AuctionID *uuid.UUID             `json:"auction_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Error     *string                `json:"error,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

func NewServerMessage(msgType MessageType) *ServerMessage {
	return &ServerMessage{
		Type:      msgType,
		Data:      make(map[string]interface{}),
		Timestamp: time.Now().Unix(),
	}
}

func NewErrorMessage(err string, auctionID *uuid.UUID) *ServerMessage {
	return &ServerMessage{
		Type:      MessageTypeError,
		AuctionID: auctionID,
		Error:     &err,
		Timestamp: time.Now().Unix(),
	}
}

func (m *ClientMessage) validateAuctionID() error {
	if m.AuctionID == nil || *m.AuctionID == uuid.Nil {
		return shared.ErrAuctionIDRequired
	}
	return nil
}

// TransactionID extracts the payment hold reference from a placeBid message
func (m *ClientMessage) TransactionID() (uuid.UUID, error) {
	raw, ok := m.Data["transaction_id"].(string)
	if !ok || raw == "" {
		return uuid.Nil, shared.ErrTransactionRequired
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, shared.ErrTransactionRequired
	}
	return id, nil
}

// ParseClientMessage parses a JSON message from client
func ParseClientMessage(data []byte) (*ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse client message: %w", err)
	}

	if msg.Type == "" {
		return nil, shared.ErrMessageTypeRequired
	}

	return &msg, nil
}

// Validate validates a client message
func (m *ClientMessage) Validate() error {
	switch m.Type {
	case MessageTypeJoinAuction, MessageTypeLeaveAuction,
		MessageTypeCloseAuction, MessageTypeCancelAuction,
		MessageTypeGetAuction, MessageTypeGetHighestBid,
		MessageTypeStartBidding, MessageTypeStopBidding:
		if err := m.validateAuctionID(); err != nil {
			return err
		}
	case MessageTypePlaceBid:
		if err := m.validateAuctionID(); err != nil {
			return err
		}
		if _, err := m.TransactionID(); err != nil {
			return err
		}
	case MessageTypeCreateAuction:
		if m.Data["item_id"] == nil {
			return shared.ErrItemIDRequired
		}
		if m.Data["end_time"] == nil {
			return shared.ErrEndTimeRequired
		}
		if m.Data["starting_price"] == nil {
			return shared.ErrStartingPriceNeeded
		}
	case MessageTypeListAuctions:

	case MessageTypePing:

	default:
		return shared.ErrUnknownMessageType
	}

	return nil
}
