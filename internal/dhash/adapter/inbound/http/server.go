package http_handler

import (
	"context"
	"errors"
	"strconv"

	"github.com/anthanhphan/go-dhash-replication/internal/dhash/domain"
	"github.com/anthanhphan/go-dhash-replication/internal/dhash/port"
	"github.com/anthanhphan/go-dhash-replication/pkg/ring"
	sdklogger "github.com/anthanhphan/gosdk/logger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	headerID    = "X-Dhash-Id"
	headerStamp = "X-Dhash-Stamp"

	maxSuccessors = 64
)

type Server struct {
	app     *fiber.App
	addr    string
	service port.ReplicationService
}

func NewServer(addr string, service port.ReplicationService) *Server {
	app := fiber.New(fiber.Config{
		BodyLimit:             domain.MaxBlockSize,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())

	s := &Server{
		app:     app,
		addr:    addr,
		service: service,
	}

	s.registerRoutes()

	return s
}

func (s *Server) registerRoutes() {
	s.app.Put("/blocks/:key", s.handleStore)
	s.app.Get("/blocks/:key", s.handleFetch)
	s.app.Delete("/blocks/:key", s.handleRemove)
	s.app.Get("/merkle/root", s.handleMerkleRoot)
	s.app.Get("/replicas", s.handleReplicas)
	s.app.Get("/successors/:key", s.handleSuccessors)
	s.app.Post("/anti-entropy/run", s.handleRunAntiEntropy)
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	s.app.Get("/healthz", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
}

// App exposes the fiber app for in-process tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Start() error {
	return s.app.Listen(s.addr)
}

func (s *Server) Stop(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) sendJSONError(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": message,
	})
}

// parseKey accepts a 16 hex digit ring id and hashes anything else onto the ring.
func parseKey(key string) ring.ID {
	if len(key) == 16 {
		if id, err := ring.ParseID(key); err == nil {
			return id
		}
	}
	return ring.KeyID([]byte(key))
}

func (s *Server) handleStore(c *fiber.Ctx) error {
	block, err := s.service.Encode(c.Body())
	if err != nil {
		return s.sendJSONError(c, fiber.StatusBadRequest, err.Error())
	}

	id := parseKey(c.Params("key"))
	if s.service.Kind() == domain.KindImmutable && c.Params("key") == "-" {
		id = domain.ImmutableKey(block)
	}

	if err := s.service.Store(c.Context(), id, block); err != nil {
		switch {
		case errors.Is(err, domain.ErrStaleBlock):
			return s.sendJSONError(c, fiber.StatusConflict, err.Error())
		case errors.Is(err, domain.ErrInvalidBlock):
			return s.sendJSONError(c, fiber.StatusBadRequest, err.Error())
		default:
			sdklogger.Errorw("Store failed", "key", id.String(), "error", err.Error())
			return s.sendJSONError(c, fiber.StatusInternalServerError, err.Error())
		}
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":     id.String(),
		"digest": block.Digest().String(),
	})
}

func (s *Server) handleFetch(c *fiber.Ctx) error {
	id := parseKey(c.Params("key"))
	block, err := s.service.Fetch(c.Context(), id)
	if errors.Is(err, domain.ErrBlockNotFound) {
		return s.sendJSONError(c, fiber.StatusNotFound, err.Error())
	}
	if err != nil {
		sdklogger.Errorw("Fetch failed", "key", id.String(), "error", err.Error())
		return s.sendJSONError(c, fiber.StatusInternalServerError, err.Error())
	}

	c.Set(headerID, id.String())
	c.Set(fiber.HeaderContentType, fiber.MIMEOctetStream)

	payload := []byte(block)
	if kind := s.service.Kind(); kind == domain.KindVersioned || kind == domain.KindTimestamp {
		stamp, p, err := domain.DecodeStamped(block)
		if err != nil {
			return s.sendJSONError(c, fiber.StatusInternalServerError, err.Error())
		}
		c.Set(headerStamp, strconv.FormatUint(stamp, 10))
		payload = p
	}
	return c.Send(payload)
}

func (s *Server) handleRemove(c *fiber.Ctx) error {
	id := parseKey(c.Params("key"))
	if err := s.service.Remove(c.Context(), id); err != nil {
		sdklogger.Errorw("Remove failed", "key", id.String(), "error", err.Error())
		return s.sendJSONError(c, fiber.StatusInternalServerError, err.Error())
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleMerkleRoot(c *fiber.Ctx) error {
	root := s.service.MerkleRoot()
	return c.JSON(fiber.Map{
		"range":  root.Range.String(),
		"digest": root.Digest.String(),
	})
}

func (s *Server) handleReplicas(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"replicas": s.service.Replicas(),
	})
}

func (s *Server) handleSuccessors(c *fiber.Ctx) error {
	count := c.QueryInt("count", 1)
	if count < 1 || count > maxSuccessors {
		return s.sendJSONError(c, fiber.StatusBadRequest, "count must be between 1 and "+strconv.Itoa(maxSuccessors))
	}

	id := parseKey(c.Params("key"))
	nodes, err := s.service.Successors(c.Context(), id, count)
	if err != nil {
		sdklogger.Warnw("Successor lookup failed", "key", id.String(), "error", err.Error())
		return s.sendJSONError(c, fiber.StatusServiceUnavailable, err.Error())
	}
	return c.JSON(fiber.Map{
		"id":         id.String(),
		"successors": nodes,
	})
}

func (s *Server) handleRunAntiEntropy(c *fiber.Ctx) error {
	results := s.service.TriggerSync(c.Context())
	return c.JSON(fiber.Map{
		"passes": results,
	})
}
