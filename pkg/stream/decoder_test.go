package stream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-alpaca/pkg/errors"
)

type DecoderTestSuite struct {
	suite.Suite
}

func TestDecoderSuite(t *testing.T) {
	suite.Run(t, new(DecoderTestSuite))
}

func (suite *DecoderTestSuite) TestDecodeEveryVariant() {
	ts := time.Date(2021, 2, 22, 15, 51, 44, 208000000, time.UTC)

	tests := []struct {
		name     string
		payload  string
		expected Message
	}{
		{
			name:     "success",
			payload:  `{"T":"success","msg":"authenticated"}`,
			expected: Success{Type: MessageTypeSuccess, Message: "authenticated"},
		},
		{
			name:     "error",
			payload:  `{"T":"error","code":402,"msg":"auth failed"}`,
			expected: ErrorMessage{Type: MessageTypeError, Code: 402, Message: "auth failed"},
		},
		{
			name:    "subscription",
			payload: `{"T":"subscription","trades":["AAPL"],"quotes":["AMD","CLDR"],"bars":["*"],"corrections":["AAPL"],"cancelErrors":["AAPL"]}`,
			expected: SubscriptionAck{
				Type:         MessageTypeSubscription,
				Trades:       []string{"AAPL"},
				Quotes:       []string{"AMD", "CLDR"},
				Bars:         []string{"*"},
				Corrections:  []string{"AAPL"},
				CancelErrors: []string{"AAPL"},
			},
		},
		{
			name:    "trade",
			payload: `{"T":"t","i":96921,"S":"AAPL","x":"D","p":126.55,"s":1,"t":"2021-02-22T15:51:44.208Z","c":["@","I"],"z":"C"}`,
			expected: Trade{
				Type: MessageTypeTrade, Symbol: "AAPL", ID: 96921, Exchange: "D", Price: 126.55, Size: 1,
				Timestamp: ts, Conditions: []string{"@", "I"}, Tape: "C",
			},
		},
		{
			name:    "quote",
			payload: `{"T":"q","S":"AMD","bx":"U","bp":87.66,"bs":1,"ax":"Q","ap":87.68,"as":4,"t":"2021-02-22T15:51:44.208Z","c":["R"],"z":"C"}`,
			expected: Quote{
				Type: MessageTypeQuote, Symbol: "AMD", BidExchange: "U", BidPrice: 87.66, BidSize: 1,
				AskExchange: "Q", AskPrice: 87.68, AskSize: 4, Timestamp: ts, Conditions: []string{"R"}, Tape: "C",
			},
		},
		{
			name:    "bar",
			payload: `{"T":"b","S":"SPY","o":388.985,"h":389.13,"l":388.975,"c":389.12,"v":49378,"t":"2021-02-22T15:51:44.208Z"}`,
			expected: Bar{
				Type: MessageTypeBar, Symbol: "SPY", Open: 388.985, High: 389.13, Low: 388.975, Close: 389.12,
				Volume: 49378, Timestamp: ts,
			},
		},
		{
			name:     "trade update without order",
			payload:  `{"T":"trade_updates","event":"new"}`,
			expected: TradeUpdate{Type: MessageTypeTradeUpdates, Event: "new"},
		},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			msg, err := DecodeMessage([]byte(tc.payload))
			suite.Require().NoError(err)
			suite.Equal(tc.expected, msg)
			suite.Equal(tc.expected.MessageType(), msg.MessageType())
		})
	}
}

func (suite *DecoderTestSuite) TestDecodeBarOptionalFields() {
	msg, err := DecodeMessage([]byte(`{"T":"b","S":"SPY","o":1,"h":2,"l":0.5,"c":1.5,"v":10,"t":"2021-02-22T15:51:00Z","n":12,"vw":1.25}`))
	suite.Require().NoError(err)

	bar, ok := msg.(Bar)
	suite.Require().True(ok)
	suite.True(bar.TradeCount.IsSome())
	suite.Equal(uint64(12), bar.TradeCount.Unwrap())
	suite.Equal(1.25, bar.VWAP.Unwrap())
}

func (suite *DecoderTestSuite) TestDecodeTradeUpdateWithOrder() {
	payload := `{"T":"trade_updates","event":"fill","order":{"id":"o-1","client_order_id":"c-1","created_at":"2024-01-02T15:04:05Z","symbol":"AAPL","asset_id":"a","asset_class":"us_equity","qty":"2","type":"market","side":"buy","time_in_force":"day","status":"filled"}}`

	msg, err := DecodeMessage([]byte(payload))
	suite.Require().NoError(err)

	update := msg.(TradeUpdate)
	suite.Equal("fill", update.Event)
	suite.Require().NotNil(update.Order)
	suite.Equal("AAPL", update.Order.Symbol)
	suite.Equal("AAPL", Symbol(update))
}

func (suite *DecoderTestSuite) TestDecodeNews() {
	payload := `{"T":"n","id":24918784,"headline":"Tesla beats estimates","summary":"s","author":"Benzinga","created_at":"2022-01-05T22:00:37Z","updated_at":"2022-01-05T22:00:38Z","url":"https://example.com/a","content":"c","symbols":["TSLA"],"source":"benzinga"}`

	msg, err := DecodeMessage([]byte(payload))
	suite.Require().NoError(err)

	news := msg.(News)
	suite.Equal(int64(24918784), news.ID)
	suite.Equal([]string{"TSLA"}, news.Symbols)
}

func (suite *DecoderTestSuite) TestDecodeMessageFailures() {
	tests := []struct {
		name    string
		payload string
		code    errors.ErrorCode
	}{
		{name: "unknown discriminator", payload: `{"T":"x","S":"AAPL"}`, code: errors.ErrCodeUnknownDiscriminator},
		{name: "missing discriminator", payload: `{"S":"AAPL","p":1}`, code: errors.ErrCodeMissingDiscriminator},
		{name: "numeric discriminator", payload: `{"T":1}`, code: errors.ErrCodeMissingDiscriminator},
		{name: "not an object", payload: `"t"`, code: errors.ErrCodeDecodeFailed},
		{name: "malformed body", payload: `{"T":"t","S":"AAPL","p":"cheap"}`, code: errors.ErrCodeDecodeFailed},
		{name: "bad timestamp", payload: `{"T":"q","S":"AAPL","t":"yesterday"}`, code: errors.ErrCodeDecodeFailed},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			msg, err := DecodeMessage([]byte(tc.payload))
			suite.Nil(msg)
			suite.Require().Error(err)
			suite.Equal(tc.code, errors.GetCode(err))
			suite.True(errors.IsDecodeError(err))
		})
	}
}

func (suite *DecoderTestSuite) TestDecodeFrameHeterogeneousArray() {
	payload := `[
		{"T":"t","S":"AAPL","i":1,"x":"V","p":10,"s":5,"t":"2024-01-02T15:04:05Z","c":["@"],"z":"C"},
		{"T":"q","S":"AAPL","ax":"V","ap":10.1,"as":1,"bx":"V","bp":9.9,"bs":2,"t":"2024-01-02T15:04:05Z","c":["R"],"z":"C"},
		{"T":"b","S":"AAPL","o":1,"h":2,"l":0.5,"c":1.5,"v":10,"t":"2024-01-02T15:04:00Z"}
	]`

	batch, err := DecodeFrame([]byte(payload))
	suite.Require().NoError(err)
	suite.Empty(batch.Failures)
	suite.Require().Len(batch.Messages, 3)
	suite.IsType(Trade{}, batch.Messages[0])
	suite.IsType(Quote{}, batch.Messages[1])
	suite.IsType(Bar{}, batch.Messages[2])
}

func (suite *DecoderTestSuite) TestDecodeFrameSkipsBadElement() {
	payload := `[
		{"T":"t","S":"AAPL","i":1,"x":"V","p":10,"s":5,"t":"2024-01-02T15:04:05Z","c":[],"z":"C"},
		{"T":"zz","S":"AAPL"},
		{"T":"t","S":"TSLA","i":2,"x":"V","p":20,"s":5,"t":"2024-01-02T15:04:06Z","c":[],"z":"C"},
		{"T":"success","msg":"connected"}
	]`

	batch, err := DecodeFrame([]byte(payload))
	suite.Require().NoError(err)
	suite.Require().Len(batch.Messages, 3)
	suite.Equal("AAPL", batch.Messages[0].(Trade).Symbol)
	suite.Equal("TSLA", batch.Messages[1].(Trade).Symbol)
	suite.Equal(Success{Type: MessageTypeSuccess, Message: "connected"}, batch.Messages[2])

	suite.Require().Len(batch.Failures, 1)
	suite.Equal(1, batch.Failures[0].Index)
	suite.True(errors.HasCode(batch.Failures[0], errors.ErrCodeUnknownDiscriminator))
	suite.Contains(batch.Failures[0].Error(), "element 1")
}

func (suite *DecoderTestSuite) TestDecodeFrameNonObjectElement() {
	batch, err := DecodeFrame([]byte(`[42, {"T":"success","msg":"connected"}]`))
	suite.Require().NoError(err)
	suite.Len(batch.Messages, 1)
	suite.Require().Len(batch.Failures, 1)
	suite.Equal(0, batch.Failures[0].Index)
}

func (suite *DecoderTestSuite) TestDecodeFrameEmptyArray() {
	batch, err := DecodeFrame([]byte(`[]`))
	suite.NoError(err)
	suite.Empty(batch.Messages)
	suite.Empty(batch.Failures)
}

func (suite *DecoderTestSuite) TestDecodeFrameSingleObject() {
	batch, err := DecodeFrame([]byte(`{"T":"success","msg":"connected"}`))
	suite.Require().NoError(err)
	suite.Len(batch.Messages, 1)

	_, err = DecodeFrame([]byte(`{"T":"nope"}`))
	suite.True(errors.HasCode(err, errors.ErrCodeUnknownDiscriminator))
}

func (suite *DecoderTestSuite) TestDecodeFrameInvalidPayload() {
	for _, payload := range []string{`[{"T":"t"`, `not json`, `"text"`, ``} {
		_, err := DecodeFrame([]byte(payload))
		suite.True(errors.HasCode(err, errors.ErrCodeDecodeFailed), payload)
	}
}

func (suite *DecoderTestSuite) TestDecodeAccountEvent() {
	event, err := DecodeAccountEvent([]byte(`{"stream":"authorization","data":{"status":"authorized","action":"authenticate"}}`))
	suite.Require().NoError(err)
	suite.True(event.IsAuthorization())
	suite.True(event.Authorized())

	event, err = DecodeAccountEvent([]byte(`{"stream":"listening","data":{"streams":["trade_updates"]}}`))
	suite.Require().NoError(err)
	suite.True(event.IsListening())
	suite.Equal([]string{"trade_updates"}, event.Data.Streams)

	payload := `{"stream":"trade_updates","data":{"event":"fill","execution_id":"e-1","price":"179.08","qty":"100","position_qty":"100","timestamp":"2024-01-02T15:04:05.123456789Z","order":{"id":"o-1","client_order_id":"c-1","created_at":"2024-01-02T15:04:05Z","symbol":"AAPL","asset_id":"a","asset_class":"us_equity","type":"market","side":"buy","time_in_force":"day","status":"filled"}}}`
	event, err = DecodeAccountEvent([]byte(payload))
	suite.Require().NoError(err)
	suite.Equal("179.08", event.Data.Price.Unwrap().String())
	suite.Equal(123456789, event.Data.Timestamp.Unwrap().Nanosecond())

	update, ok := event.TradeUpdate()
	suite.Require().True(ok)
	suite.Equal(MessageTypeTradeUpdates, update.MessageType())
	suite.Equal("fill", update.Event)
	suite.Equal("AAPL", update.Order.Symbol)
}

func (suite *DecoderTestSuite) TestDecodeAccountEventFailures() {
	tests := []struct {
		name    string
		payload []byte
		code    errors.ErrorCode
	}{
		{name: "invalid utf8", payload: []byte{0xff, 0xfe, '{', '}'}, code: errors.ErrCodeDecodeFailed},
		{name: "array", payload: []byte(`[{"stream":"listening"}]`), code: errors.ErrCodeDecodeFailed},
		{name: "truncated", payload: []byte(`{"stream":"listening"`), code: errors.ErrCodeDecodeFailed},
		{name: "wrong field type", payload: []byte(`{"stream":"trade_updates","data":{"price":true}}`), code: errors.ErrCodeDecodeFailed},
		{name: "no stream", payload: []byte(`{"data":{}}`), code: errors.ErrCodeMissingDiscriminator},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			_, err := DecodeAccountEvent(tc.payload)
			suite.Equal(tc.code, errors.GetCode(err))
		})
	}
}

func (suite *DecoderTestSuite) TestHelpers() {
	suite.True(IsControl(Success{}))
	suite.True(IsControl(SubscriptionAck{}))
	suite.False(IsControl(Trade{}))
	suite.Equal("AAPL", Symbol(Quote{Symbol: "AAPL"}))
	suite.Equal("", Symbol(Success{}))
	suite.Equal("auth failed", ErrorMessage{Message: "auth failed"}.Error())
}
