package routers

import (
	"github.com/gin-gonic/gin"
	"github.com/okieraised/perceptor-bringup/internal/constants"
	"github.com/okieraised/perceptor-bringup/internal/server/rest_server/routers/v1/restful"
	"github.com/okieraised/perceptor-bringup/internal/server/rest_server/routers/v1/ws"
)

type RootRouter struct {
	appState *AppState
}

func NewRootRouter(appState *AppState) *RootRouter {
	return &RootRouter{
		appState: appState,
	}
}

func (rr *RootRouter) InitRouters(engine *gin.Engine) {
	// http
	rootAPIRouter := engine.Group("/api")
	v1Router := rootAPIRouter.Group("/v1")
	v1State := rr.appState.GetV1RestState()
	{
		if svc := v1State.GetHealthcheckService(); svc != nil {
			restful.NewHealthcheckRouter(svc).Routes(v1Router)
		}
		if svc := v1State.GetConfigurationService(); svc != nil {
			restful.NewConfigurationRouter(svc).Routes(v1Router)
		}
		if svc := v1State.GetLaunchService(); svc != nil {
			restful.NewLaunchRouter(svc).Routes(v1Router)
		}
		if svc := v1State.GetMappingService(); svc != nil {
			restful.NewMappingRouter(svc).Routes(v1Router)
		}
	}

	// websocket
	if wsState := rr.appState.GetWebsocketState(); wsState != nil {
		if svc := wsState.GetProgressService(); svc != nil {
			rootWSRouter := engine.Group(constants.WebsocketPathPrefix)
			ws.NewProgressRouter(svc).Routes(rootWSRouter)
		}
	}
}
