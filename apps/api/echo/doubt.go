package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/doubt"
	"github.com/trezcool/darasa/core/user"
)

type doubtApi struct {
	svc    doubt.ServiceInterface
	usrSvc user.ServiceInterface

	validate *validator.Validate
}

func registerDoubtAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc doubt.ServiceInterface,
	usrSvc user.ServiceInterface,
	validate *validator.Validate,
) {
	api := doubtApi{svc: svc, usrSvc: usrSvc, validate: validate}

	dg := g.Group("/doubts", jwt)
	dg.POST("/trainer", api.initiateTrainer)
	dg.POST("/ai", api.initiateAI)
	dg.GET("", api.query)
	dg.GET("/:id", api.retrieve)
	dg.GET("/:id/messages", api.history)
	dg.POST("/:id/messages", api.appendMessage)
	dg.POST("/:id/close", api.close)
	dg.POST("/:id/feedback", api.submitFeedback)
}

// Handlers

func (api *doubtApi) initiateTrainer(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !ctxUsr.IsStudent() {
		return errHttpForbidden
	}

	var data doubt.NewTrainerDoubt
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTrainerDoubt")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	sess, err := api.svc.InitiateTrainerDoubt(ctx.Request().Context(), ctxUsr, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, sess)
}

func (api *doubtApi) initiateAI(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !ctxUsr.IsStudent() {
		return errHttpForbidden
	}

	var data doubt.NewAIDoubt
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAIDoubt")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	sess, err := api.svc.InitiateAIDoubt(ctx.Request().Context(), ctxUsr, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, sess)
}

func (api *doubtApi) query(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	filter := new(doubt.QueryFilter)
	if err = ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []doubt.Session{})
	}

	sessions, err := api.svc.Query(ctx.Request().Context(), ctxUsr, filter)
	if err != nil {
		return errors.Wrap(err, "querying doubt sessions")
	}
	if sessions == nil {
		sessions = []doubt.Session{}
	}
	return ctx.JSON(http.StatusOK, sessions)
}

func (api *doubtApi) retrieve(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	sess, err := api.svc.Get(ctx.Request().Context(), ctxUsr, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sess)
}

func (api *doubtApi) history(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	msgs, err := api.svc.History(ctx.Request().Context(), ctxUsr, ctx.Param("id"))
	if err != nil {
		return err
	}
	if msgs == nil {
		msgs = []doubt.Message{}
	}
	return ctx.JSON(http.StatusOK, msgs)
}

func (api *doubtApi) appendMessage(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data doubt.NewMessage
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMessage")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	msg, err := api.svc.AppendMessage(ctx.Request().Context(), ctxUsr, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, msg)
}

func (api *doubtApi) close(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	sess, err := api.svc.Close(ctx.Request().Context(), ctxUsr, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sess)
}

func (api *doubtApi) submitFeedback(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data doubt.AIFeedback
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AIFeedback")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	sess, err := api.svc.SubmitAIFeedback(ctx.Request().Context(), ctxUsr, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sess)
}
