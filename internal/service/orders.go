package service

import (
	"context"
	"time"

	"github.com/Skotchmaster/elearning/internal/logging"
	"github.com/Skotchmaster/elearning/internal/mailer"
	"github.com/Skotchmaster/elearning/internal/metrics"
	"github.com/Skotchmaster/elearning/internal/models"
	"github.com/Skotchmaster/elearning/internal/payment"
	"github.com/Skotchmaster/elearning/internal/repo"
	"github.com/Skotchmaster/elearning/internal/transport"
)

type OrderService struct {
	Repo     *repo.GormRepo
	Sessions SessionStore
	Courses  CourseCache
	Payments PaymentGateway
	Mail     Dispatcher
	Events   EventPublisher

	PublishableKey string
}

// CreateOrder records a purchase. When payment info is sent the intent must
// have succeeded. A failed confirmation mail is reported but the order
// stays.
func (s *OrderService) CreateOrder(ctx context.Context, identity *models.User, req transport.OrderRequest) (*models.Order, error) {
	order := &models.Order{CourseID: req.CourseID, UserID: identity.ID}

	if req.PaymentInfo != nil && req.PaymentInfo.ID != "" {
		if s.Payments == nil {
			return nil, ErrPaymentUnavailable
		}
		intent, err := s.Payments.RetrieveIntent(ctx, req.PaymentInfo.ID)
		if err != nil {
			return nil, upstream("Could not verify payment", err)
		}
		if intent.Status != payment.StatusSucceeded {
			return nil, ErrPaymentNotAuth
		}
		order.PaymentID = intent.ID
		order.PaymentStatus = intent.Status
	}

	u, err := s.Repo.UserByID(ctx, identity.ID)
	if err != nil {
		return nil, storeErr("load user", err, ErrUserNotFound)
	}
	if u.Owns(req.CourseID) {
		return nil, ErrAlreadyPurchased
	}
	c, err := s.Repo.CourseByID(ctx, req.CourseID)
	if err != nil {
		return nil, storeErr("load course", err, ErrCourseNotFound)
	}

	if err := s.Repo.CreateOrder(ctx, order); err != nil {
		return nil, internal("create order", err)
	}

	err = s.Mail.Dispatch(ctx, mailer.Message{
		To:       u.Email,
		Subject:  "Order Confirmation",
		Template: mailer.TemplateOrderConfirm,
		Data: map[string]any{
			"order": map[string]any{
				"_id":   shortID(order.ID),
				"name":  c.Name,
				"price": c.Price,
				"date":  time.Now().UTC().Format("January 2, 2006"),
			},
		},
	})
	if err != nil {
		return nil, upstream("Could not send order confirmation", err)
	}

	if err := s.Repo.AddUserCourse(ctx, u.ID, c.ID); err != nil {
		return nil, internal("add user course", err)
	}
	if _, err := refreshSession(ctx, s.Repo, s.Sessions, u.ID); err != nil {
		return nil, err
	}
	if err := s.Repo.IncrementPurchased(ctx, c.ID); err != nil {
		return nil, internal("increment purchased", err)
	}
	if err := s.Courses.Delete(ctx, c.ID); err != nil {
		logging.FromContext(ctx).Warn("course_cache_invalidate_failed", "course_id", c.ID, "error", err)
	}
	notify(ctx, s.Repo, u.ID, "New Order", "You have a new order from "+c.Name)

	metrics.RecordOrder()
	publish(ctx, s.Events, TopicOrderEvents, order.ID, map[string]any{
		"type": "order_created", "orderId": order.ID, "courseId": c.ID, "userId": u.ID, "price": c.Price,
	})
	return order, nil
}

func (s *OrderService) ListOrders(ctx context.Context) ([]models.Order, error) {
	orders, err := s.Repo.ListOrders(ctx)
	if err != nil {
		return nil, internal("list orders", err)
	}
	return orders, nil
}

// NewPayment creates a USD payment intent and returns its client secret.
func (s *OrderService) NewPayment(ctx context.Context, amount int64) (string, error) {
	if s.Payments == nil {
		return "", ErrPaymentUnavailable
	}
	intent, err := s.Payments.CreateIntent(ctx, amount, "usd")
	if err != nil {
		return "", upstream("Could not create payment", err)
	}
	return intent.ClientSecret, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
