// Package flyapi turns a declarative table of REST endpoints into ready to
// use query and mutation hooks backed by one shared HTTP client and a keyed
// query cache.
//
// Endpoints are grouped by category. GET endpoints become query hooks whose
// results are cached under (category, name); POST, PUT and DELETE endpoints
// become mutation hooks:
//
//	registry := flyapi.Registry{
//	    "users": {
//	        {Name: "getUser", Method: flyapi.MethodGet, Path: "/user"},
//	        {Name: "createUser", Method: flyapi.MethodPost, Path: "/user"},
//	        {Name: "deleteUser", Method: flyapi.MethodDelete, Path: "/user"},
//	    },
//	}
//	if err := flyapi.ConfigureApis(registry, flyapi.NetworkConfig{Domain: "api.example.com", Port: 443, SSL: true}); err != nil {
//	    return err
//	}
//
//	provider := flyapi.NewProvider(nil)
//	defer provider.Close()
//	ctx = provider.Scope(ctx)
//
//	apis, err := flyapi.UseApis(ctx, "users")
//	if err != nil {
//	    return err
//	}
//	user, _ := apis.Query("getUser")
//	state := user.Use(ctx)
//
//	del, _ := apis.Mutation("deleteUser")
//	_, err = del.Use().Mutate(ctx, 42) // DELETE /user/42
//
// UseApis requires a context from a Provider scope and a prior ConfigureApis
// call; unknown categories log a warning and yield an empty Apis.
//
// The client layer logs every request through a Logger, converts non-2xx
// responses into *ClientError values of type TransportError and can report
// Prometheus metrics. Configuration can also be loaded from a file with
// LoadConfig and kept current with WatchConfig.
package flyapi
