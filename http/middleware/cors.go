package middlewares

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/tnqbao/gau-platform/config"
)

// CORSMiddleware allows the comma separated ALLOWED_DOMAINS and any
// subdomain of GLOBAL_DOMAIN.
func CORSMiddleware(cfg *config.EnvConfig) gin.HandlerFunc {
	var origins []string
	for _, o := range strings.Split(cfg.CORS.AllowDomains, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	global := strings.TrimPrefix(strings.TrimSpace(cfg.CORS.GlobalDomain), ".")

	return cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			for _, o := range origins {
				if o == "*" || strings.EqualFold(o, origin) {
					return true
				}
			}
			if global == "" {
				return false
			}
			host := origin
			if i := strings.Index(host, "://"); i >= 0 {
				host = host[i+3:]
			}
			if i := strings.IndexByte(host, ':'); i >= 0 {
				host = host[:i]
			}
			return host == global || strings.HasSuffix(host, "."+global)
		},
		AllowMethods: []string{"GET", "HEAD", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Content-Length", "Authorization", "X-API-Key",
			"X-Upload-ID", "Range", "If-None-Match", "If-Range",
		},
		ExposeHeaders: []string{
			"Content-Length", "Content-Range", "Accept-Ranges", "ETag", "Last-Modified",
			"Content-Disposition", "X-Upload-ID",
		},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}
