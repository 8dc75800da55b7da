package core

import (
	"encoding/json"

	"github.com/rs/zerolog/log"
)

// Domain events arrive as an event_type string plus an opaque JSON
// payload. The wire decoders below map known types onto a closed
// variant set per domain so the engine can dispatch exhaustively;
// an unknown event_type decodes to (nil, true) which the engine
// treats as a silent no-op. Wire-level forward compatibility is
// deliberate: newer clients may send vocabularies older servers do
// not know, and that must never break a session. A malformed payload
// for a known type is a rejection instead.

type TarotEvent interface{ tarotEvent() }

type TarotCardDrawn struct {
	Position string         `json:"position"`
	Card     map[string]any `json:"card"`
}

type TarotInterpretationAdded struct {
	Position string `json:"position"`
	Text     string `json:"text"`
}

type TarotSpreadCompleted struct{}

func (TarotCardDrawn) tarotEvent()           {}
func (TarotInterpretationAdded) tarotEvent() {}
func (TarotSpreadCompleted) tarotEvent()     {}

// DecodeTarotEvent maps a wire event onto the tarot variant set.
// ok is false only for malformed payloads of known types.
func DecodeTarotEvent(eventType string, payload []byte) (ev TarotEvent, ok bool) {
	switch eventType {
	case "card_drawn":
		var v TarotCardDrawn
		if !decode(payload, &v, eventType) || v.Position == "" {
			return nil, false
		}
		return v, true
	case "interpretation_added":
		var v TarotInterpretationAdded
		if !decode(payload, &v, eventType) || v.Position == "" {
			return nil, false
		}
		return v, true
	case "spread_completed":
		return TarotSpreadCompleted{}, true
	default:
		return nil, true
	}
}

type NumerologyEvent interface{ numerologyEvent() }

type NumerologyPersonalCalculation struct {
	Profile map[string]any `json:"profile"`
}

type NumerologyGroupCompatibility struct {
	Compatibility map[string]any `json:"compatibility"`
}

type NumerologyCosmicTiming struct {
	Timing map[string]any `json:"timing"`
}

func (NumerologyPersonalCalculation) numerologyEvent() {}
func (NumerologyGroupCompatibility) numerologyEvent()  {}
func (NumerologyCosmicTiming) numerologyEvent()        {}

func DecodeNumerologyEvent(eventType string, payload []byte) (ev NumerologyEvent, ok bool) {
	switch eventType {
	case "personal_calculation":
		var v NumerologyPersonalCalculation
		if !decode(payload, &v, eventType) {
			return nil, false
		}
		return v, true
	case "group_compatibility":
		var v NumerologyGroupCompatibility
		if !decode(payload, &v, eventType) {
			return nil, false
		}
		return v, true
	case "cosmic_timing":
		var v NumerologyCosmicTiming
		if !decode(payload, &v, eventType) {
			return nil, false
		}
		return v, true
	default:
		return nil, true
	}
}

type CosmosEvent interface{ cosmosEvent() }

type CosmosAvatarMovement struct {
	Position map[string]float64 `json:"position"`
	Rotation map[string]float64 `json:"rotation"`
}

type CosmosObjectCreation struct {
	Object map[string]any `json:"object"`
}

type CosmosEnvironmentChange struct {
	Environment map[string]any `json:"environment"`
}

func (CosmosAvatarMovement) cosmosEvent()    {}
func (CosmosObjectCreation) cosmosEvent()    {}
func (CosmosEnvironmentChange) cosmosEvent() {}

func DecodeCosmosEvent(eventType string, payload []byte) (ev CosmosEvent, ok bool) {
	switch eventType {
	case "avatar_movement":
		var v CosmosAvatarMovement
		if !decode(payload, &v, eventType) {
			return nil, false
		}
		return v, true
	case "object_creation":
		var v CosmosObjectCreation
		if !decode(payload, &v, eventType) || v.Object == nil {
			return nil, false
		}
		return v, true
	case "environment_change":
		var v CosmosEnvironmentChange
		if !decode(payload, &v, eventType) {
			return nil, false
		}
		return v, true
	default:
		return nil, true
	}
}

func decode(payload []byte, v any, eventType string) bool {
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	if err := json.Unmarshal(payload, v); err != nil {
		log.Warn().Err(err).Str("module", "core.events").Str("event_type", eventType).Msg("bad event payload")
		return false
	}
	return true
}
