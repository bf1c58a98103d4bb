package routers

import (
	"github.com/okieraised/perceptor-bringup/internal/server/rest_server/services/v1/restful"
	"github.com/okieraised/perceptor-bringup/internal/server/rest_server/services/v1/ws"
)

type V1Rest struct {
	healthcheck   *restful.HealthcheckService
	configuration *restful.ConfigurationService
	launch        *restful.LaunchService
	mapping       *restful.MappingService
}

func NewV1RestState() *V1Rest {
	return &V1Rest{}
}

func (svc *V1Rest) SetHealthcheckService(healthcheck *restful.HealthcheckService) {
	svc.healthcheck = healthcheck
}

func (svc *V1Rest) GetHealthcheckService() *restful.HealthcheckService {
	return svc.healthcheck
}

func (svc *V1Rest) SetConfigurationService(configuration *restful.ConfigurationService) {
	svc.configuration = configuration
}

func (svc *V1Rest) GetConfigurationService() *restful.ConfigurationService {
	return svc.configuration
}

func (svc *V1Rest) SetLaunchService(launch *restful.LaunchService) {
	svc.launch = launch
}

func (svc *V1Rest) GetLaunchService() *restful.LaunchService {
	return svc.launch
}

func (svc *V1Rest) SetMappingService(mapping *restful.MappingService) {
	svc.mapping = mapping
}

func (svc *V1Rest) GetMappingService() *restful.MappingService {
	return svc.mapping
}

type Websocket struct {
	progress *ws.ProgressService
}

func NewWebsocketState() *Websocket {
	return &Websocket{}
}

func (svc *Websocket) SetProgressService(progress *ws.ProgressService) {
	svc.progress = progress
}

func (svc *Websocket) GetProgressService() *ws.ProgressService {
	return svc.progress
}

type AppState struct {
	v1Rest    *V1Rest
	websocket *Websocket
}

func NewAppState() *AppState {
	return &AppState{}
}

func (svc *AppState) SetV1RestState(v1Rest *V1Rest) {
	svc.v1Rest = v1Rest
}

func (svc *AppState) GetV1RestState() *V1Rest {
	return svc.v1Rest
}

func (svc *AppState) SetWebsocketState(websocket *Websocket) {
	svc.websocket = websocket
}

func (svc *AppState) GetWebsocketState() *Websocket {
	return svc.websocket
}
