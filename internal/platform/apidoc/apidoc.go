package apidoc

import (
	_ "embed"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

//go:embed openapi.yaml
var document []byte

const DocPath = "/openapi.yaml"

// RegisterRoutes は OpenAPI 定義と Swagger UI を公開する（認証なし）
func RegisterRoutes(r gin.IRoutes) {
	r.GET(DocPath, func(c *gin.Context) {
		c.Data(http.StatusOK, "application/yaml; charset=utf-8", document)
	})
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL(DocPath)))
}
