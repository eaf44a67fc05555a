package server

import (
	"encoding/json"
	"errors"

	"github.com/chatwave/chatwave/internal/protocol"
)

var errInvalidPayload = errors.New("invalid payload")

func decodePayload(payload interface{}, target interface{}) error {
	if payload == nil {
		return errInvalidPayload
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}

func decodeHelloRequest(payload interface{}) (protocol.HelloRequest, error) {
	var req protocol.HelloRequest
	err := decodePayload(payload, &req)
	return req, err
}

func decodeChatSendRequest(payload interface{}) (protocol.ChatSendRequest, error) {
	var req protocol.ChatSendRequest
	err := decodePayload(payload, &req)
	return req, err
}

func decodeHistoryRequest(payload interface{}) (protocol.HistoryRequest, error) {
	var req protocol.HistoryRequest
	if payload == nil {
		// A bare history request asks for the latest page.
		return req, nil
	}
	err := decodePayload(payload, &req)
	return req, err
}

func decodeRoomCreateRequest(payload interface{}) (protocol.RoomCreateRequest, error) {
	var req protocol.RoomCreateRequest
	err := decodePayload(payload, &req)
	return req, err
}
