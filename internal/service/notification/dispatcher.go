package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/domainwatch/internal/domain"
	"github.com/ignite/domainwatch/internal/metrics"
	"github.com/ignite/domainwatch/internal/pkg/logger"
)

// EmailSender delivers a plain-text email.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// Message is one notification about a tracked domain.
type Message struct {
	TrackedDomainID string
	Category        domain.Category
	// Vars are the template variables; "domain" is filled in when absent.
	Vars map[string]interface{}
}

// Delivery reports which channels a message actually went out on.
type Delivery struct {
	Channels domain.ChannelFlags
	Email    bool
	InApp    bool
}

// Dispatcher resolves channels and delivers messages.
type Dispatcher struct {
	repo     Repository
	resolver *Resolver
	renderer *Renderer
	email    EmailSender
	log      *logger.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewDispatcher creates a Dispatcher. A nil email sender disables email.
func NewDispatcher(repo Repository, email EmailSender, log *logger.Logger, m *metrics.Metrics) *Dispatcher {
	if log == nil {
		log = logger.Default()
	}
	return &Dispatcher{
		repo:     repo,
		resolver: NewResolver(repo),
		renderer: NewRenderer(),
		email:    email,
		log:      log.With("component", "notification"),
		metrics:  m,
		now:      time.Now,
	}
}

// Notify delivers msg on every channel the resolver enables. A failed email
// does not prevent the in-app row; the first error is returned after both
// channels were attempted.
func (d *Dispatcher) Notify(ctx context.Context, msg Message) (Delivery, error) {
	var out Delivery

	if !msg.Category.Valid() {
		return out, fmt.Errorf("%w: %q", ErrUnknownCategory, msg.Category)
	}
	td, err := d.repo.FindTrackedDomainByID(ctx, msg.TrackedDomainID)
	if errors.Is(err, domain.ErrTrackedDomainNotFound) {
		return out, nil
	}
	if err != nil {
		return out, fmt.Errorf("load tracked domain: %w", err)
	}

	flags, err := d.resolver.resolveFor(ctx, td, msg.Category)
	if err != nil {
		return out, err
	}
	out.Channels = flags
	if !flags.Any() {
		return out, nil
	}

	vars := make(map[string]interface{}, len(msg.Vars)+1)
	for k, v := range msg.Vars {
		vars[k] = v
	}
	if _, ok := vars["domain"]; !ok {
		vars["domain"] = td.DomainName
	}
	subject, body, err := d.renderer.Render(msg.Category, vars)
	if err != nil {
		return out, err
	}

	var firstErr error
	if flags.Email && d.email != nil {
		sent, err := d.sendEmail(ctx, td, subject, body)
		if err != nil {
			firstErr = err
		} else if sent {
			out.Email = true
			d.metrics.IncNotification("email", string(msg.Category))
		}
	}

	if flags.InApp {
		n := &domain.Notification{
			ID:              uuid.New().String(),
			UserID:          td.OwnerUserID,
			TrackedDomainID: td.ID,
			Category:        msg.Category,
			Title:           subject,
			Body:            body,
			CreatedAt:       d.now().UTC(),
		}
		if err := d.repo.InsertNotification(ctx, n); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("insert notification: %w", err)
			}
		} else {
			out.InApp = true
			d.metrics.IncNotification("in_app", string(msg.Category))
		}
	}

	if firstErr != nil {
		d.log.Warn("notification delivery incomplete", "domain_id", td.ID, "category", msg.Category, "error", firstErr)
	}
	return out, firstErr
}

func (d *Dispatcher) sendEmail(ctx context.Context, td *domain.TrackedDomain, subject, body string) (bool, error) {
	to, err := d.repo.GetUserEmail(ctx, td.OwnerUserID)
	if err != nil {
		return false, fmt.Errorf("lookup owner email: %w", err)
	}
	if to == "" {
		d.log.Debug("owner has no email address", "user_id", td.OwnerUserID)
		return false, nil
	}
	if err := d.email.SendEmail(ctx, to, subject, body); err != nil {
		return false, fmt.Errorf("send email: %w", err)
	}
	d.log.Info("notification emailed", "email", to, "domain_id", td.ID)
	return true, nil
}
