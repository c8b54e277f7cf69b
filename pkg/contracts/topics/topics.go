package topics

const (
	// Odds
	OddsUpdates = "odds_updates"

	// Bets
	BetPlaced  = "bet_placed"
	BetSettled = "bet_settled"

	// DLQs
	OddsUpdatesDLQ = "odds_updates_dlq"

	// Canais Redis Pub/Sub
	OddsBroadcast  = "odds_updates_broadcast"
	AlertBroadcast = "price_alerts_broadcast"
)
