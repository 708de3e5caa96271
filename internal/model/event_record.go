package model

import "encoding/json"

// EventRecord is the JSON envelope the dispatcher delivers to the engine,
// one per on-chain state-change event, in emission order per pool.
type EventRecord struct {
	ChainID     uint64          `json:"chain_id"`
	BlockNumber uint64          `json:"block_number"`
	BlockHash   string          `json:"block_hash"`
	TxHash      string          `json:"tx_hash"`
	LogIndex    uint64          `json:"log_index"`
	Address     string          `json:"address"`
	EventName   string          `json:"event_name"`
	Timestamp   uint64          `json:"timestamp"`
	Origin      string          `json:"origin"`
	Decoded     json.RawMessage `json:"decoded"`
	PoolMeta    PoolMeta        `json:"pool_meta"`
}

// PoolMeta carries immutable pool metadata alongside each event so the
// dispatcher can seed Pool and Token records before first delivery.
type PoolMeta struct {
	Token0         string `json:"token0"`
	Token1         string `json:"token1"`
	Token0Decimals uint8  `json:"token0_decimals,omitempty"`
	Token1Decimals uint8  `json:"token1_decimals,omitempty"`
	Fee            uint32 `json:"fee"`
	TickSpacing    int32  `json:"tick_spacing"`
}
