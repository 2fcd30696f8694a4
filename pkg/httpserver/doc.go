// Package httpserver runs an http.Handler with graceful shutdown and
// supervises background jobs that share the server's lifetime.
//
//	srv := httpserver.New(
//		httpserver.WithAddr(":8080"),
//		httpserver.WithLogger(log),
//		httpserver.WithBackgroundJob("expire-subscriptions", expireLoop),
//	)
//	if err := srv.Run(ctx, router); err != nil {
//		log.Error("server stopped", logger.Error(err))
//	}
//
// Run returns when ctx is cancelled, SIGINT/SIGTERM arrives or the listener
// fails. Background jobs receive a context that is cancelled before the HTTP
// server shuts down and Run waits for them to return.
package httpserver
