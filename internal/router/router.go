package router

import (
	"sync"

	"github.com/Meesho/BharatMLStack/predict-server/internal/controller"
	"github.com/Meesho/BharatMLStack/predict-server/pkg/httpframework"
	"github.com/gin-gonic/gin"
)

var initRouterOnce sync.Once

// Init expects http framework to be initialized before calling this function
func Init(ctl *controller.Controller) {
	initRouterOnce.Do(func() {
		Register(httpframework.Instance(), ctl)
	})
}

func Register(routes gin.IRoutes, ctl *controller.Controller) {
	routes.GET("/", ctl.Health)
	routes.POST("/predict", ctl.Predict)
}
