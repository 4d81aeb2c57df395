package services

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"price-checker/internal/config"
	"price-checker/internal/database"
	"price-checker/internal/models"
	"time"
)

// ErrNotConfigured is returned by a transport whose credentials are missing
var ErrNotConfigured = errors.New("notification credentials not configured")

// Transport delivers a formatted notification
type Transport interface {
	Send(title, message, linkURL, priority string) error
}

// NotifyService formats and sends alerts for qualifying transitions
type NotifyService struct {
	transport Transport
}

// NewNotifyService creates a new notification service
func NewNotifyService(transport Transport) *NotifyService {
	return &NotifyService{transport: transport}
}

// Notify sends one alert for a qualifying transition. Delivery failure is
// logged and recorded but never returned as fatal: the check's state has
// already been persisted and is not rolled back.
func (s *NotifyService) Notify(product *models.Product, transition Transition, obs Observation, oldPrice *float64) {
	title, message := formatAlert(product, transition, obs, oldPrice)
	priority := transition.Priority()

	err := s.transport.Send(title, message, product.URL, priority)
	if errors.Is(err, ErrNotConfigured) {
		log.Printf("Notification skipped for %s: %v", product.Name, err)
		return
	}

	status := "success"
	if err != nil {
		status = "failed"
		log.Printf("Failed to send notification for %s: %v", product.Name, err)
	} else {
		log.Printf("Notification sent for %s (%s)", product.Name, transition)
	}

	s.recordNotification(product, transition, message, priority, status)
}

// SendTest sends a test notification to verify configuration
func (s *NotifyService) SendTest() error {
	return s.transport.Send(
		"Price Checker Test",
		"Test notification - your Price Checker is configured correctly!",
		"",
		PriorityNormal,
	)
}

// recordNotification records the notification attempt in the database
func (s *NotifyService) recordNotification(product *models.Product, transition Transition, message, priority, status string) {
	db := database.GetDB()

	notification := &models.Notification{
		ProductID:  product.ID,
		Transition: string(transition),
		Message:    message,
		Priority:   priority,
		Status:     status,
		SentAt:     time.Now(),
	}

	db.Create(notification)
}

func formatAlert(product *models.Product, transition Transition, obs Observation, oldPrice *float64) (title, message string) {
	name := product.Name
	if name == "" {
		name = product.URL
	}

	switch transition {
	case TransitionBecameAvailable:
		priceStr := "Price unknown"
		if obs.Price != nil {
			priceStr = formatPrice(*obs.Price, obs.Currency)
		}
		return "Item Available!", fmt.Sprintf("%s is back in stock!\n\n%s", name, priceStr)

	case TransitionPriceDecreased:
		oldStr := "?"
		if oldPrice != nil {
			oldStr = formatPrice(*oldPrice, obs.Currency)
		}
		return "Price Drop", fmt.Sprintf("Price drop for %s\n\n%s -> %s",
			name, oldStr, formatPrice(*obs.Price, obs.Currency))

	default:
		return "Price Checker", fmt.Sprintf("%s: %s", name, transition)
	}
}

func formatPrice(price float64, currency string) string {
	if currency == "" || currency == "USD" {
		return fmt.Sprintf("$%.2f", price)
	}
	return fmt.Sprintf("%.2f %s", price, currency)
}

// PushoverAPIURL is the Pushover message endpoint
const PushoverAPIURL = "https://api.pushover.net/1/messages.json"

// PushoverTransport sends push notifications via the Pushover API
type PushoverTransport struct {
	config *config.PushoverConfig
	apiURL string
	client *http.Client
}

// NewPushoverTransport creates a new Pushover transport
func NewPushoverTransport(cfg *config.PushoverConfig) *PushoverTransport {
	return &PushoverTransport{
		config: cfg,
		apiURL: PushoverAPIURL,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Send posts a message to the Pushover API. High priority rings with the
// cash register sound; normal priority uses the device default.
func (t *PushoverTransport) Send(title, message, linkURL, priority string) error {
	if t.config.UserKey == "" || t.config.APIToken == "" {
		return ErrNotConfigured
	}

	payload := url.Values{
		"token":   {t.config.APIToken},
		"user":    {t.config.UserKey},
		"title":   {title},
		"message": {message},
	}

	if linkURL != "" {
		payload.Set("url", linkURL)
		payload.Set("url_title", "View Product")
	}

	if priority == PriorityHigh {
		payload.Set("priority", "1")
		payload.Set("sound", "cashregister")
	} else {
		payload.Set("priority", "0")
	}

	resp, err := t.client.PostForm(t.apiURL, payload)
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("pushover API returned status %d", resp.StatusCode)
	}

	return nil
}
