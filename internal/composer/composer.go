// Package composer manages the outbound draft and reply-in-context binding.
package composer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/matheus3301/fitmsg/internal/bus"
	"github.com/matheus3301/fitmsg/internal/conversation"
	"github.com/matheus3301/fitmsg/internal/model"
	"go.uber.org/zap"
)

// ErrSendInProgress is returned by Submit while a previous submit is in flight.
var ErrSendInProgress = errors.New("a message is already being sent")

// Mode is the composer's UI mode.
type Mode string

const (
	ModeBrowse  Mode = "browse"
	ModeCompose Mode = "compose"
)

// Composer holds at most one draft. A reply context, when set, decides the
// recipient over any selected contact.
type Composer struct {
	store  *conversation.Store
	bus    *bus.Bus
	logger *zap.Logger

	mu       sync.Mutex
	selected model.Contact
	reply    *model.Message
	body     string
	mode     Mode
	sending  bool
	version  uint64
}

// New creates a composer in browse mode with an empty draft.
func New(store *conversation.Store, b *bus.Bus, logger *zap.Logger) *Composer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Composer{
		store:  store,
		bus:    b,
		logger: logger,
		mode:   ModeBrowse,
	}
}

// StartReply binds the draft to an inbound message: the recipient becomes the
// message's sender, the body is cleared and the mode switches to compose.
func (c *Composer) StartReply(msg model.Message) error {
	if msg.IsMine {
		return &model.ValidationError{Field: "reply", Reason: "cannot reply to your own message"}
	}
	if msg.SenderID <= 0 {
		return &model.ValidationError{Field: "reply", Reason: "message has no sender"}
	}
	if msg.SenderName == "" || msg.SenderRole == "" {
		if ct, ok := c.store.Contact(msg.SenderID); ok {
			if msg.SenderName == "" {
				msg.SenderName = ct.Name
			}
			if msg.SenderRole == "" {
				msg.SenderRole = ct.Role
			}
		}
	}

	c.mu.Lock()
	c.reply = &msg
	c.selected = model.Contact{}
	c.body = ""
	c.mode = ModeCompose
	d := c.changedLocked()
	c.mu.Unlock()

	c.publish(d)
	return nil
}

// ReplyTo starts a reply to a message of the active thread.
func (c *Composer) ReplyTo(messageID int64) error {
	msg, ok := c.store.Message(messageID)
	if !ok {
		return fmt.Errorf("message %d: %w", messageID, model.ErrNotFound)
	}
	return c.StartReply(msg)
}

// SelectRecipient seeds the draft with ct and clears any reply context. The
// body is kept.
func (c *Composer) SelectRecipient(ct model.Contact) error {
	if ct.ID <= 0 {
		return &model.ValidationError{Field: "recipient", Reason: "contact has no id"}
	}
	c.mu.Lock()
	c.selected = ct
	c.reply = nil
	c.mode = ModeCompose
	d := c.changedLocked()
	c.mu.Unlock()

	c.publish(d)
	return nil
}

// Open selects peerID as recipient and opens its thread in the store. The
// conversation list and the notification feed both open conversations here.
func (c *Composer) Open(ctx context.Context, peerID int64) (conversation.Thread, error) {
	if peerID <= 0 {
		return conversation.Thread{}, &model.ValidationError{Field: "peer", Reason: "must be a positive id"}
	}
	ct, ok := c.store.Contact(peerID)
	if !ok {
		ct = model.Contact{ID: peerID}
	}

	c.mu.Lock()
	c.selected = ct
	c.reply = nil
	d := c.changedLocked()
	c.mu.Unlock()
	c.publish(d)

	return c.store.OpenThread(ctx, peerID)
}

// SetBody replaces the draft text.
func (c *Composer) SetBody(body string) {
	c.mu.Lock()
	c.body = body
	d := c.changedLocked()
	c.mu.Unlock()
	c.publish(d)
}

// Cancel discards the draft and returns to browse mode.
func (c *Composer) Cancel() {
	c.mu.Lock()
	c.resetLocked()
	d := c.changedLocked()
	c.mu.Unlock()
	c.publish(d)
}

// Draft returns the current draft.
func (c *Composer) Draft() model.Draft {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draftLocked()
}

// Mode returns the current mode.
func (c *Composer) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Sending reports whether a submit is in flight.
func (c *Composer) Sending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sending
}

// Submit sends the draft. An empty trimmed body or a missing recipient fails
// with a ValidationError before any network call. On failure the draft is
// kept for retry; on success it is cleared unless it was edited while the
// send was in flight.
func (c *Composer) Submit(ctx context.Context) (model.SendReceipt, error) {
	c.mu.Lock()
	if c.sending {
		c.mu.Unlock()
		return model.SendReceipt{}, ErrSendInProgress
	}
	d := c.draftLocked()
	body := strings.TrimSpace(d.Body)
	if body == "" {
		c.mu.Unlock()
		return model.SendReceipt{}, &model.ValidationError{Field: "body", Reason: "message is empty"}
	}
	if d.RecipientID <= 0 {
		c.mu.Unlock()
		return model.SendReceipt{}, &model.ValidationError{Field: "recipient", Reason: "no recipient selected"}
	}
	c.sending = true
	ver := c.version
	c.mu.Unlock()

	receipt, err := c.store.Send(ctx, d.RecipientID, body)

	c.mu.Lock()
	c.sending = false
	if err != nil {
		c.mu.Unlock()
		c.logger.Warn("send failed, draft kept", zap.Int64("recipient", d.RecipientID), zap.Error(err))
		return model.SendReceipt{}, err
	}
	var changed *model.Draft
	if c.version == ver {
		c.resetLocked()
		nd := c.changedLocked()
		changed = &nd
	}
	c.mu.Unlock()

	if changed != nil {
		c.publish(*changed)
	}
	return receipt, nil
}

func (c *Composer) draftLocked() model.Draft {
	d := model.Draft{Body: c.body}
	switch {
	case c.reply != nil:
		d.RecipientID = c.reply.SenderID
		d.RecipientName = c.reply.SenderName
		d.RecipientRole = c.reply.SenderRole
		d.ReplyingToMessageID = c.reply.ID
	case c.selected.ID > 0:
		d.RecipientID = c.selected.ID
		d.RecipientName = c.selected.Name
		d.RecipientRole = c.selected.Role
	}
	return d
}

func (c *Composer) resetLocked() {
	c.selected = model.Contact{}
	c.reply = nil
	c.body = ""
	c.mode = ModeBrowse
}

func (c *Composer) changedLocked() model.Draft {
	c.version++
	return c.draftLocked()
}

func (c *Composer) publish(d model.Draft) {
	if c.bus != nil {
		c.bus.Emit(bus.KindDraftChanged, d)
	}
}
