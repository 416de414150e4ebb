// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "RespireAI")

	viper.SetDefault("webserver.debug", false)
	viper.SetDefault("webserver.host", "")
	viper.SetDefault("webserver.port", "8080")
	viper.SetDefault("webserver.autotls", false)
	viper.SetDefault("webserver.tlshost", "")
	viper.SetDefault("webserver.log.enabled", true)
	viper.SetDefault("webserver.log.path", "logs/web.log")
	viper.SetDefault("webserver.log.rotation", RotationDaily)
	viper.SetDefault("webserver.log.maxsize", 1048576)

	viper.SetDefault("inference.baseurl", "http://localhost:8001")
	viper.SetDefault("inference.timeout", 60*time.Second)

	viper.SetDefault("session.secret", "")
	viper.SetDefault("session.maxage", 0)
	viper.SetDefault("session.secure", false)

	viper.SetDefault("report.clinicname", "RespireAI")
}
