package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/topic"
	"github.com/trezcool/darasa/core/user"
)

type topicApi struct {
	svc    topic.ServiceInterface
	usrSvc user.ServiceInterface

	validate *validator.Validate
}

func registerTopicAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc topic.ServiceInterface,
	usrSvc user.ServiceInterface,
	validate *validator.Validate,
) {
	api := topicApi{svc: svc, usrSvc: usrSvc, validate: validate}

	tg := g.Group("/topics", jwt)
	tg.GET("", api.query)
	tg.POST("", api.create, adminMiddleware())
	tg.GET("/:id", api.retrieve)
}

func (api *topicApi) create(ctx echo.Context) error {
	var data topic.NewTopic
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTopic")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	t, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating topic")
	}
	return ctx.JSON(http.StatusCreated, t)
}

// query lists the topics of the caller's grade; a "grade" query param
// overrides it for admins.
func (api *topicApi) query(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	grade := ctxUsr.Grade
	if ctxUsr.IsAdmin() {
		if g, ok := intQueryParam(ctx, "grade"); ok {
			grade = g
		}
	}

	topics, err := api.svc.QueryByGrade(ctx.Request().Context(), grade)
	if err != nil {
		return errors.Wrap(err, "querying topics")
	}
	if topics == nil {
		topics = []topic.Topic{}
	}
	return ctx.JSON(http.StatusOK, topics)
}

func (api *topicApi) retrieve(ctx echo.Context) error {
	t, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, t)
}
