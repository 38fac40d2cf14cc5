/*
Package httpserver runs the HTTP surface of the registration service.

The server hosts any number of API handlers next to the operational
endpoints and serves Prometheus metrics on a separate listener.

# Endpoints

  - GET /livez - Liveness check
  - GET /readyz - Readiness check, 503 while draining
  - GET /drain - Mark the server as not ready
  - GET /undrain - Mark the server as ready
  - /debug/pprof - Profiling, when enabled
  - GET /metrics - Prometheus metrics, on MetricsAddr

# Example Usage

	cfg := &httpserver.HTTPServerConfig{
		ListenAddr:               ":8080",
		MetricsAddr:              ":9090",
		Log:                      logger,
		DrainDuration:            30 * time.Second,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              60 * time.Second,
		WriteTimeout:             30 * time.Second,
	}

	server := httpserver.New(cfg,
		workflowhandler.NewHandler(engine, logger),
		metadatahandler.NewHandler(publisher, logger))
	server.RunInBackground()
	defer server.Shutdown()
*/
package httpserver
