package http

import (
	"encoding/json"

	"github.com/chatterbox-im/chatterbox-server/internal/core"
	"github.com/chatterbox-im/chatterbox-server/internal/proto"
)

// inboundToCommand maps a wire envelope to a core command. A protocol-level
// problem (unknown type, missing field) is returned as a *core.CoreError the
// caller sends back without dropping the connection; a non-nil error means
// the payload was malformed beyond recovery.
func inboundToCommand(inbound proto.Inbound) (*core.Command, *core.CoreError, error) {
	switch inbound.Type {
	case proto.InboundTypeJoinChannel:
		var join proto.JoinChannelData
		if err := json.Unmarshal(inbound.Data, &join); err != nil {
			return nil, nil, err
		}
		channelID := join.ChannelID
		return &core.Command{
			Kind:      core.CommandJoinChannel,
			ChannelID: &channelID,
		}, nil, nil
	case proto.InboundTypeLeaveChannel:
		var leave proto.JoinChannelData
		if err := json.Unmarshal(inbound.Data, &leave); err != nil {
			return nil, nil, err
		}
		channelID := leave.ChannelID
		return &core.Command{
			Kind:      core.CommandLeaveChannel,
			ChannelID: &channelID,
		}, nil, nil
	case proto.InboundTypeSendMessage:
		var msg proto.SendMessageData
		if err := json.Unmarshal(inbound.Data, &msg); err != nil {
			return nil, nil, err
		}
		return &core.Command{
			Kind:       core.CommandSendMessage,
			ChannelID:  msg.ChannelID,
			ReceiverID: msg.ReceiverID,
			Content:    msg.Content,
		}, nil, nil
	case proto.InboundTypeHistory:
		var hist proto.HistoryData
		if err := json.Unmarshal(inbound.Data, &hist); err != nil {
			return nil, nil, err
		}
		channelID := hist.ChannelID
		return &core.Command{
			Kind:      core.CommandFetchHistory,
			ChannelID: &channelID,
			History: core.PageRequest{
				Limit:          hist.Limit,
				Offset:         hist.Offset,
				AuthorUsername: hist.AuthorUsername,
				ContentQuery:   hist.ContentQuery,
				MatchType:      hist.MatchType,
			},
		}, nil, nil
	default:
		return nil, &core.CoreError{Code: core.ErrCodeBadRequest, Message: "unknown message type"}, nil
	}
}

func boolPtr(b bool) *bool { return &b }
func intPtr(n int) *int    { return &n }

// outboundFromEvent maps a core event to its wire envelope.
func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventMessageNew:
		return proto.Outbound{
			Type: proto.OutboundTypeMessageNew,
			Data: proto.MessageFromStore(event.Message),
		}
	case core.EventSendAck:
		if event.Error != nil {
			return proto.Outbound{
				Type:    proto.OutboundTypeAck,
				Op:      proto.InboundTypeSendMessage,
				Success: boolPtr(false),
				Error:   &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
			}
		}
		return proto.Outbound{
			Type:    proto.OutboundTypeAck,
			Op:      proto.InboundTypeSendMessage,
			Success: boolPtr(true),
			Data:    proto.MessageFromStore(event.Message),
		}
	case core.EventHistoryPage:
		if event.Error != nil {
			return proto.Outbound{
				Type:    proto.OutboundTypeAck,
				Op:      proto.InboundTypeHistory,
				Success: boolPtr(false),
				Error:   &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
			}
		}
		page := event.Page
		return proto.Outbound{
			Type:    proto.OutboundTypeAck,
			Op:      proto.InboundTypeHistory,
			Success: boolPtr(true),
			Count:   intPtr(len(page.Items)),
			Total:   intPtr(page.Total),
			HasMore: boolPtr(page.HasMore),
			Data:    proto.MessagesFromStore(page.Items),
		}
	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown event"}}
	}
}
