package domain

import "time"

// Topic names one event stream on the bus. Delivery is in publish order per
// topic per subscriber; there is no ordering guarantee across topics.
type Topic string

const (
	TopicPriceUpdate     Topic = "price:update"
	TopicOpportunity     Topic = "arbitrage:opportunity"
	TopicSkipped         Topic = "arbitrage:skipped"
	TopicTradeComplete   Topic = "trade:complete"
	TopicAgentError      Topic = "agent:error"
	TopicBalanceUpdate   Topic = "balance:update"
	TopicSentimentUpdate Topic = "sentiment:update"
)

// Topics lists every topic, in the order the mirror subscribes to them.
var Topics = []Topic{
	TopicPriceUpdate,
	TopicOpportunity,
	TopicSkipped,
	TopicTradeComplete,
	TopicAgentError,
	TopicBalanceUpdate,
	TopicSentimentUpdate,
}

// Event is the tagged union carried by the bus. Each topic has exactly one
// payload type, so subscribers switch on the concrete type instead of
// duck-typing map payloads. Payloads must be treated as read-only.
type Event interface {
	EventTopic() Topic
}

// PriceUpdate is published by a monitor on every successful, validated fetch.
type PriceUpdate struct {
	Quote  PriceQuote
	Source string // publishing agent name
}

func (PriceUpdate) EventTopic() Topic { return TopicPriceUpdate }

// OpportunityDetected is published by the detector when an opportunity
// passes every validation gate.
type OpportunityDetected struct {
	Opportunity Opportunity
	Source      string
}

func (OpportunityDetected) EventTopic() Topic { return TopicOpportunity }

// OpportunitySkipped is published whenever an evaluation is discarded, with
// the full list of reasons. Nothing is dropped silently.
type OpportunitySkipped struct {
	Opportunity Opportunity // zero-value except prices when staleness aborted early
	Reasons     []string
	StaleChain  Chain // set when the skip reason is stale data
	Source      string
	At          time.Time
}

func (OpportunitySkipped) EventTopic() Topic { return TopicSkipped }

// TradeComplete reports the terminal outcome of one trade attempt.
type TradeComplete struct {
	Result TradeResult
	Source string
}

func (TradeComplete) EventTopic() Topic { return TopicTradeComplete }

// AgentError reports a component failure. Critical errors are recorded by
// the orchestrator; non-critical ones are observability only.
type AgentError struct {
	Agent    string
	Err      string
	Context  string
	Critical bool
	At       time.Time
}

func (AgentError) EventTopic() Topic { return TopicAgentError }

// BalanceUpdate carries the latest venue balances for the dashboard.
type BalanceUpdate struct {
	Balances map[string]float64 // e.g. "solana:SOL", "binance:USDT"
	At       time.Time
	Source   string
}

func (BalanceUpdate) EventTopic() Topic { return TopicBalanceUpdate }

// SentimentUpdate carries a synthetic sentiment score for the dashboard.
// Nothing in the decision path consumes it.
type SentimentUpdate struct {
	Score  float64 // -1..1
	Label  string
	At     time.Time
	Source string
}

func (SentimentUpdate) EventTopic() Topic { return TopicSentimentUpdate }
