package stream

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/buger/jsonparser"

	"github.com/rxtech-lab/argo-alpaca/pkg/errors"
)

// DiscriminatorField is the key that selects the variant of a push message.
const DiscriminatorField = "T"

// ElementError records an array element that could not be decoded.
type ElementError struct {
	Index int
	Err   error
}

func (e ElementError) Error() string {
	return fmt.Sprintf("element %d: %v", e.Index, e.Err)
}

func (e ElementError) Unwrap() error {
	return e.Err
}

// Batch is the result of decoding one text frame.
// Messages keep the relative order they had in the frame.
type Batch struct {
	Messages []Message
	Failures []ElementError
}

// DecodeMessage decodes a single JSON object into its Message variant.
// Objects without a string "T" field or with an unknown "T" value are rejected.
func DecodeMessage(raw []byte) (Message, error) {
	_, dataType, _, err := jsonparser.Get(raw)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDecodeFailed, "invalid message payload", err)
	}

	if dataType != jsonparser.Object {
		return nil, errors.Newf(errors.ErrCodeDecodeFailed, "message must be a JSON object, got %s", dataType)
	}

	discriminator, err := jsonparser.GetString(raw, DiscriminatorField)
	if err != nil {
		if err == jsonparser.KeyPathNotFoundError {
			return nil, errors.New(errors.ErrCodeMissingDiscriminator, "message has no \"T\" field")
		}

		return nil, errors.Wrap(errors.ErrCodeMissingDiscriminator, "message \"T\" field is not a string", err)
	}

	switch MessageType(discriminator) {
	case MessageTypeSuccess:
		return decodeAs[Success](raw)
	case MessageTypeError:
		return decodeAs[ErrorMessage](raw)
	case MessageTypeSubscription:
		return decodeAs[SubscriptionAck](raw)
	case MessageTypeTrade:
		return decodeAs[Trade](raw)
	case MessageTypeQuote:
		return decodeAs[Quote](raw)
	case MessageTypeBar:
		return decodeAs[Bar](raw)
	case MessageTypeTradeUpdates:
		return decodeAs[TradeUpdate](raw)
	case MessageTypeNews:
		return decodeAs[News](raw)
	default:
		return nil, errors.Newf(errors.ErrCodeUnknownDiscriminator, "unknown message type %q", discriminator)
	}
}

func decodeAs[T Message](raw []byte) (Message, error) {
	var msg T
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeDecodeFailed, err, "malformed %q message", msg.MessageType())
	}

	return msg, nil
}

// DecodeFrame decodes the payload of a market data or news text frame.
//
// An array payload is decoded element by element: elements that fail are reported in
// Batch.Failures and the rest are kept. A single object payload has no siblings to
// fall back to, so its failure is returned as the error.
func DecodeFrame(payload []byte) (Batch, error) {
	if !json.Valid(payload) {
		return Batch{}, errors.New(errors.ErrCodeDecodeFailed, "frame is not valid JSON")
	}

	value, dataType, _, err := jsonparser.Get(payload)
	if err != nil {
		return Batch{}, errors.Wrap(errors.ErrCodeDecodeFailed, "invalid frame payload", err)
	}

	switch dataType {
	case jsonparser.Object:
		msg, err := DecodeMessage(value)
		if err != nil {
			return Batch{}, err
		}

		return Batch{Messages: []Message{msg}}, nil
	case jsonparser.Array:
		var batch Batch

		index := 0
		_, err := jsonparser.ArrayEach(value, func(element []byte, elementType jsonparser.ValueType, _ int, _ error) {
			defer func() { index++ }()

			if elementType != jsonparser.Object {
				batch.Failures = append(batch.Failures, ElementError{
					Index: index,
					Err:   errors.Newf(errors.ErrCodeDecodeFailed, "message must be a JSON object, got %s", elementType),
				})

				return
			}

			msg, err := DecodeMessage(element)
			if err != nil {
				batch.Failures = append(batch.Failures, ElementError{Index: index, Err: err})

				return
			}

			batch.Messages = append(batch.Messages, msg)
		})
		if err != nil {
			return Batch{}, errors.Wrap(errors.ErrCodeDecodeFailed, "failed to iterate frame array", err)
		}

		return batch, nil
	default:
		return Batch{}, errors.Newf(errors.ErrCodeDecodeFailed, "frame must be a JSON array or object, got %s", dataType)
	}
}

// DecodeAccountEvent decodes one account channel payload. The payload must be UTF-8
// text holding a single JSON object; any failure is returned as an error.
func DecodeAccountEvent(payload []byte) (AccountEvent, error) {
	if !utf8.Valid(payload) {
		return AccountEvent{}, errors.New(errors.ErrCodeDecodeFailed, "account event is not valid UTF-8")
	}

	_, dataType, _, err := jsonparser.Get(payload)
	if err != nil {
		return AccountEvent{}, errors.Wrap(errors.ErrCodeDecodeFailed, "invalid account event payload", err)
	}

	if dataType != jsonparser.Object {
		return AccountEvent{}, errors.Newf(errors.ErrCodeDecodeFailed, "account event must be a JSON object, got %s", dataType)
	}

	var event AccountEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return AccountEvent{}, errors.Wrap(errors.ErrCodeDecodeFailed, "malformed account event", err)
	}

	if event.Stream == "" {
		return AccountEvent{}, errors.New(errors.ErrCodeMissingDiscriminator, "account event has no stream field")
	}

	return event, nil
}
