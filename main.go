package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mailbridge/go-mailbridge/apiroutes"
	"github.com/mailbridge/go-mailbridge/email"
	"github.com/mailbridge/go-mailbridge/global"
)

func main() {
	var (
		configFile string
	)
	// configuration file optional path. Default: current dir with filename conf.yaml
	flag.StringVar(&configFile, "c", "conf.yaml", "Configuration file path.")
	flag.StringVar(&configFile, "config", "conf.yaml", "Configuration file path.")
	flag.Usage = usage
	flag.Parse()

	// loading configuration file
	if err := global.LoadConfig(configFile); err != nil {
		global.Logger.Log("err", err, "msg", "conf.yaml failed to load")
		panic("Failed to load conf.yaml")
	}

	if global.Conf.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// register ESP backends and webhook normalizers from config
	if err := RegisterEspHandlers(context.Background(), &global.Conf); err != nil {
		panic(fmt.Sprintf("failed to register providers: %v", err))
	}
	global.Logger.Log("msg", "registered send backends", "providers", fmt.Sprintf("%v", email.Backends()))

	// configure routes
	router := gin.New()
	router.Use(gin.Recovery())
	router = apiroutes.ConfigRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", global.Conf.Port),
		Handler: router,
	}

	// server wait to shutdown monitoring channels
	done := make(chan bool, 1)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-quit
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			global.Logger.Log("err", err, "msg", "forced server shutdown")
		}
		close(done)
	}()

	global.Logger.Log("msg", "server is ready to handle requests", "port", global.Conf.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("%v\n", err))
	}

	<-done
}

// usage will print out the flag options for the server.
func usage() {
	usageStr := `Usage: mailbridge [options]
Server Options:
	-c, --config <file>     Configuration file path (default: conf.yaml)
`
	fmt.Printf("%s\n", usageStr)
	os.Exit(0)
}
