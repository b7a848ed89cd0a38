package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/doubt"
	"github.com/trezcool/darasa/core/school"
	"github.com/trezcool/darasa/core/topic"
	"github.com/trezcool/darasa/core/user"
	relaysvc "github.com/trezcool/darasa/services/relay"
)

type (
	ServerDeps struct {
		Conf   *core.Config
		Logger core.Logger

		UserSvc   user.ServiceInterface
		SchoolSvc school.ServiceInterface
		TopicSvc  topic.ServiceInterface
		DoubtSvc  doubt.ServiceInterface
		Relay     relaysvc.Forwarder

		Validate   *validator.Validate
		Translator ut.Translator

		DisableReqLogs bool
	}

	Server interface {
		http.Handler
		Start()
		Shutdown(context.Context) error
		Close() error
		Errors() <-chan error
		ShutdownSignal() <-chan os.Signal
	}

	server struct {
		deps ServerDeps
		app  *echo.Echo
		hub  *wsHub

		errs     chan error
		shutdown chan os.Signal
	}
)

var _ Server = (*server)(nil)

func NewServer(deps ServerDeps) Server {
	s := &server{
		deps:     deps,
		app:      echo.New(),
		hub:      newWSHub(),
		errs:     make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.deps.Conf

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.SignalShutdown)
	s.app.Debug = conf.Debug
	s.app.HideBanner = true

	s.app.GET("/", home)

	api := s.app.Group("/api")
	jwt := middleware.JWTWithConfig(newJWTConfig())

	registerUserAPI(api, jwt, s.deps.UserSvc, s.deps.Validate, s.deps.Translator)
	registerSchoolAPI(api, jwt, s.deps.SchoolSvc, s.deps.Validate)
	registerTopicAPI(api, jwt, s.deps.TopicSvc, s.deps.UserSvc, s.deps.Validate)
	registerDoubtAPI(api, jwt, s.deps.DoubtSvc, s.deps.UserSvc, s.deps.Validate)

	// websocket gateway; fed by the relay so events published on any node
	// reach clients connected here
	gateway := &wsGateway{
		hub:      s.hub,
		usrSvc:   s.deps.UserSvc,
		doubtSvc: s.deps.DoubtSvc,
		logger:   s.deps.Logger,
	}
	wsJWT := middleware.JWTWithConfig(newJWTConfig("query:token"))
	api.GET("/ws", gateway.handle, wsJWT)

	s.deps.Relay.StartForwarder(context.Background(), s.hub.broadcast)
}

func (s *server) Start() {
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.errs <- s.app.Start(s.deps.Conf.Server.APIHost)
}

// SignalShutdown requests a graceful stop, as if SIGTERM was received.
func (s *server) SignalShutdown() {
	s.shutdown <- syscall.SIGTERM
}

func (s *server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) Close() error {
	return s.app.Close()
}

func (s *server) Errors() <-chan error {
	return s.errs
}

func (s *server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Darasa API!")
}
