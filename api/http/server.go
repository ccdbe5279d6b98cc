package http

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"bitbucket.org/novatechnologies/marketfeed/api/http/handler"
	"bitbucket.org/novatechnologies/marketfeed/infra"
)

type Server struct {
	srv http.Server
}

func NewServer(
	loader handler.BackfillLoader,
	registry handler.PriceRegistry,
	conf infra.Config,
) *Server {
	candleHandler := handler.NewCandleHandler(loader)
	priceHandler := handler.NewPriceHandler(registry)

	router := mux.NewRouter()
	router.HandleFunc("/api/candles", candleHandler.GetCandles).Methods(http.MethodGet)
	router.HandleFunc("/api/prices", priceHandler.GetPrices).Methods(http.MethodGet)

	s := &Server{}
	s.srv.Addr = fmt.Sprintf(":%d", conf.HTTPConfig.Port)
	s.srv.Handler = router

	return s
}

func (s *Server) Start(ctx context.Context) {
	s.srv.BaseContext = func(listener net.Listener) context.Context {
		return ctx
	}
	go func() {
		log.Info("[*] Http server is started")
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithField("err", err).Error("http server stopped")
		}
	}()
}

func (s *Server) Stop(ctx context.Context) {
	if err := s.srv.Shutdown(ctx); err != nil {
		log.Info("shutdown")
	}
}
