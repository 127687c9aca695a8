// Package messaging implements the paid universal message log.
//
// Cross-chain messages are tagged records only. They never leave the
// originating chain and carry no delivery guarantee.
package messaging

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/domaguardian/domaguardian/internal/access"
	"github.com/domaguardian/domaguardian/internal/chain"
	"github.com/domaguardian/domaguardian/internal/ledger"
)

// Common errors returned by the message log.
var (
	ErrInvalidRecipient = errors.New("invalid recipient")
	ErrInvalidMessage   = errors.New("invalid message")
)

// Event names.
const (
	EventMessageSent           = "MessageSent"
	EventCrossChainMessageSent = "CrossChainMessageSent"
)

// Message is an immutable message record.
type Message struct {
	ID                 uint64         `json:"id"`
	Sender             common.Address `json:"sender"`
	Recipient          common.Address `json:"recipient"`
	Text               string         `json:"text"`
	CrossChain         bool           `json:"crossChain"`
	DestinationChainID uint64         `json:"destinationChainId,omitempty"`
	Timestamp          int64          `json:"timestamp"`
}

// MessageSent is emitted for same-chain messages.
type MessageSent struct {
	ID        uint64         `json:"id"`
	Sender    common.Address `json:"sender"`
	Recipient common.Address `json:"recipient"`
}

// CrossChainMessageSent is emitted for cross-chain tagged messages.
type CrossChainMessageSent struct {
	ID                 uint64         `json:"id"`
	Sender             common.Address `json:"sender"`
	Recipient          common.Address `json:"recipient"`
	DestinationChainID uint64         `json:"destinationChainId"`
}

// Log is the messaging contract.
type Log struct {
	access.Ownable

	addr     common.Address
	gate     ledger.Gate
	messages []Message
	sent     map[common.Address][]uint64
	received map[common.Address][]uint64
}

// New creates a message log deployed at addr.
func New(addr, owner common.Address, l *ledger.Ledger) *Log {
	return &Log{
		Ownable:  access.NewOwnable(addr, owner),
		addr:     addr,
		gate:     ledger.NewGate(l, addr),
		sent:     make(map[common.Address][]uint64),
		received: make(map[common.Address][]uint64),
	}
}

// Address returns the contract address.
func (l *Log) Address() common.Address { return l.addr }

// Ledger returns the address of the payment ledger.
func (l *Log) Ledger() common.Address { return l.gate.Ledger() }

// Price returns the cost of one message.
func (l *Log) Price() *big.Int { return l.gate.Price() }

// SendMessage charges the caller and records a same-chain message.
func (l *Log) SendMessage(tx *chain.Tx, recipient common.Address, text string) (uint64, error) {
	if err := validate(recipient, text); err != nil {
		return 0, err
	}
	if _, err := l.gate.Charge(tx); err != nil {
		return 0, err
	}

	msg := l.append(tx, Message{
		Sender:    tx.Caller(),
		Recipient: recipient,
		Text:      text,
	})
	tx.Emit(l.addr, EventMessageSent, MessageSent{
		ID:        msg.ID,
		Sender:    msg.Sender,
		Recipient: msg.Recipient,
	})
	return msg.ID, nil
}

// SendCrossChainMessage charges the caller and records a message tagged for
// destinationChainID. The destination must differ from the local chain.
func (l *Log) SendCrossChainMessage(tx *chain.Tx, destinationChainID uint64, recipient common.Address, text string) (uint64, error) {
	if destinationChainID == 0 || destinationChainID == tx.ChainID() {
		return 0, ErrInvalidRecipient
	}
	if err := validate(recipient, text); err != nil {
		return 0, err
	}
	if _, err := l.gate.Charge(tx); err != nil {
		return 0, err
	}

	msg := l.append(tx, Message{
		Sender:             tx.Caller(),
		Recipient:          recipient,
		Text:               text,
		CrossChain:         true,
		DestinationChainID: destinationChainID,
	})
	tx.Emit(l.addr, EventCrossChainMessageSent, CrossChainMessageSent{
		ID:                 msg.ID,
		Sender:             msg.Sender,
		Recipient:          msg.Recipient,
		DestinationChainID: destinationChainID,
	})
	return msg.ID, nil
}

func validate(recipient common.Address, text string) error {
	if recipient == (common.Address{}) {
		return ErrInvalidRecipient
	}
	if text == "" {
		return ErrInvalidMessage
	}
	return nil
}

// append stores msg in the global list, the sender's sent list and, for
// same-chain messages, the recipient's received list.
func (l *Log) append(tx *chain.Tx, msg Message) Message {
	msg.ID = uint64(len(l.messages))
	msg.Timestamp = tx.Now().Unix()

	l.messages = append(l.messages, msg)
	l.sent[msg.Sender] = append(l.sent[msg.Sender], msg.ID)
	if !msg.CrossChain {
		l.received[msg.Recipient] = append(l.received[msg.Recipient], msg.ID)
	}
	tx.OnRevert(func() {
		l.messages = l.messages[:msg.ID]
		trimLast(l.sent, msg.Sender)
		if !msg.CrossChain {
			trimLast(l.received, msg.Recipient)
		}
	})
	return msg
}

func trimLast(index map[common.Address][]uint64, addr common.Address) {
	ids := index[addr]
	if len(ids) <= 1 {
		delete(index, addr)
		return
	}
	index[addr] = ids[:len(ids)-1]
}

// ListMessages returns messages [offset, min(offset+limit, total)) of the
// global list. It returns an empty slice when offset is past the end.
func (l *Log) ListMessages(offset, limit uint64) []Message {
	total := uint64(len(l.messages))
	if offset >= total {
		return []Message{}
	}
	end := total
	if limit < total-offset {
		end = offset + limit
	}
	out := make([]Message, end-offset)
	copy(out, l.messages[offset:end])
	return out
}

// Count returns the number of messages in the global list.
func (l *Log) Count() uint64 {
	return uint64(len(l.messages))
}

// Message returns the message with the given id.
func (l *Log) Message(id uint64) (Message, bool) {
	if id >= uint64(len(l.messages)) {
		return Message{}, false
	}
	return l.messages[id], true
}

// Sent returns the messages sent by user, oldest first.
func (l *Log) Sent(user common.Address) []Message {
	return l.resolve(l.sent[user])
}

// Received returns the same-chain messages received by user, oldest first.
func (l *Log) Received(user common.Address) []Message {
	return l.resolve(l.received[user])
}

func (l *Log) resolve(ids []uint64) []Message {
	out := make([]Message, len(ids))
	for i, id := range ids {
		out[i] = l.messages[id]
	}
	return out
}
