package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/mail"
	"sort"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bjaus/switchboard"
	"github.com/bjaus/switchboard/config"
	"github.com/bjaus/switchboard/metrics"
	"github.com/bjaus/switchboard/middleware"
)

type user struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type createUserInput struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (in createUserInput) Validate() error {
	var fields []switchboard.FieldError
	if in.Name == "" {
		fields = append(fields, switchboard.FieldError{Field: "name", Message: "name is required"})
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		fields = append(fields, switchboard.FieldError{Field: "email", Message: "email is invalid"})
	}
	if len(fields) > 0 {
		return switchboard.NewValidationError(fields...)
	}
	return nil
}

type userStore struct {
	mu    sync.RWMutex
	users map[string]user
}

func newUserStore() *userStore {
	return &userStore{users: make(map[string]user)}
}

func (s *userStore) create(in createUserInput) user {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := user{ID: uuid.NewString(), Name: in.Name, Email: in.Email}
	s.users[u.ID] = u
	return u
}

func (s *userStore) get(id string) (user, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	return u, ok
}

func (s *userStore) list() []user {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]user, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *userStore) delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return false
	}
	delete(s.users, id)
	return true
}

// newEntryPoint wires the users service. collector may be nil.
func newEntryPoint(cfg config.Config, logger *zap.Logger, collector *metrics.Collector) *switchboard.EntryPoint {
	store := newUserStore()

	initHandler := func(ctx context.Context) (*switchboard.Handler, error) {
		opts := []switchboard.Option{
			switchboard.WithLogger(logger),
			switchboard.WithMiddleware(middleware.AuditLog(logger, middleware.Suppress(cfg.Audit.Suppress))),
		}
		if cfg.Auth.Secret != "" {
			opts = append(opts, switchboard.WithMiddleware(middleware.JWT(middleware.JWTConfig{
				Secret:   []byte(cfg.Auth.Secret),
				Issuer:   cfg.Auth.Issuer,
				Audience: cfg.Auth.Audience,
			})))
		}
		opts = append(opts, switchboard.WithMiddleware(middleware.Validate()))
		opts = append(opts, cfg.HandlerOptions()...)
		if collector != nil {
			opts = append(opts, collector.Options()...)
		}

		h := switchboard.New(opts...)
		registerRoutes(h, store)
		registerEvents(h, store, logger)
		if cfg.Auth.Secret != "" {
			h.Authorizer(bearerAuthorizer([]byte(cfg.Auth.Secret)))
		}
		return h, nil
	}

	return switchboard.NewEntryPoint(initHandler,
		switchboard.WithEntryPointLogger(logger),
		switchboard.WithEntryPointResponseDefaults(cfg.ResponseDefaults()),
	)
}

func registerRoutes(h *switchboard.Handler, store *userStore) {
	protected := switchboard.WithValue(middleware.AuthRequired, true)
	cors := switchboard.WithCORS(switchboard.CORS{
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	h.Get("/health", func(ctx context.Context, req *switchboard.Request) (*switchboard.ResponseBody, error) {
		return switchboard.OK(req).Send(map[string]string{"status": "ok"}), nil
	})

	h.Get("/users", func(ctx context.Context, req *switchboard.Request) (*switchboard.ResponseBody, error) {
		return switchboard.OK(req).Send(store.list()), nil
	}, cors)

	h.Post("/users", func(ctx context.Context, req *switchboard.Request) (*switchboard.ResponseBody, error) {
		in, _ := middleware.Body[createUserInput](req)
		return switchboard.Created(req).Send(store.create(in)), nil
	}, cors, protected, middleware.WithBody[createUserInput]())

	h.Get("/users/{id}", func(ctx context.Context, req *switchboard.Request) (*switchboard.ResponseBody, error) {
		u, ok := store.get(req.PathParam("id"))
		if !ok {
			return nil, switchboard.NewNotFound("User not found")
		}
		return switchboard.OK(req).Send(u), nil
	}, cors)

	h.Delete("/users/{id}", func(ctx context.Context, req *switchboard.Request) (*switchboard.ResponseBody, error) {
		if !store.delete(req.PathParam("id")) {
			return nil, switchboard.NewNotFound("User not found")
		}
		return switchboard.NoContent(req).Send(nil), nil
	}, cors, protected)
}

func registerEvents(h *switchboard.Handler, store *userStore, logger *zap.Logger) {
	switchboard.OnSQS(h, switchboard.AnySelector, func(ctx context.Context, m events.SQSMessage, _ *switchboard.Metadata) (any, error) {
		var in createUserInput
		if err := json.Unmarshal([]byte(m.Body), &in); err != nil {
			return nil, switchboard.NewBadRequest("Message body is not a user").Wrap(err)
		}
		if err := in.Validate(); err != nil {
			return nil, err
		}
		return store.create(in), nil
	}, switchboard.WithEventName("import users"))

	switchboard.OnS3(h, "ObjectCreated:Put", func(ctx context.Context, r events.S3EventRecord, _ *switchboard.Metadata) (any, error) {
		logger.Info("user export uploaded",
			zap.String("bucket", r.S3.Bucket.Name),
			zap.String("key", r.S3.Object.Key),
		)
		return r.S3.Object.Key, nil
	}, switchboard.WithEventName("export uploaded"))
}

func bearerAuthorizer(secret []byte) switchboard.AuthorizerFunc {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))

	return func(ctx context.Context, req *switchboard.AuthorizerRequest) (any, error) {
		token := req.BearerToken()
		if token == "" {
			return switchboard.Deny("anonymous", req.MethodArn()), nil
		}
		claims := jwt.MapClaims{}
		if _, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) { return secret, nil }); err != nil {
			if errors.Is(err, jwt.ErrTokenMalformed) {
				return nil, switchboard.NewUnauthorized("Malformed token").Wrap(err)
			}
			return switchboard.Deny("anonymous", req.MethodArn()), nil
		}
		sub, _ := claims.GetSubject()
		return switchboard.Allow(sub, req.MethodArn()), nil
	}
}
