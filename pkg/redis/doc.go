// Package redis connects to the Redis server backing the conversion registry.
//
// Connect retries until the server answers PING or ConnectTimeout elapses, and
// Healthcheck returns a check func for the readiness endpoint:
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	registry, err := conversion.NewRedisRegistry(client, cfg.ConversionKey)
//
// Sentinel errors wrap the go-redis errors with errors.Join.
package redis
