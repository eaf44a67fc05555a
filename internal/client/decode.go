package client

import (
	"encoding/json"
	"errors"
)

func decodePayload(payload interface{}, target interface{}) error {
	if payload == nil {
		return errors.New("empty payload")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}
