// Package restclient binds declarative REST endpoint definitions to request
// descriptors and dispatches them through a pluggable Transport.
//
// # Defining a service
//
// A Service is declared once, usually at package level. Each endpoint names
// its HTTP verb, a URL template and the role of every call argument:
//
//	var petstore = restclient.NewService("petstore").
//	    BaseURL("https://petstore.example.com/v2").
//	    DefaultHeaders(restclient.StringMap{"Accepts": "application/json"}).
//	    GET("GetPet", "/pet/{petId}", restclient.Path("petId")).
//	    GET("FindPets", "/pet/findByStatus", restclient.Query("status")).
//	    POST("AddPet", "/pet", restclient.Body()).
//	    DELETE("DeletePet", "/pet/{petId}", restclient.Path("petId"), restclient.Header("api_key")).
//	    MustBuild()
//
// Binding errors, such as two Body arguments on one endpoint, are reported
// by Build and wrap ErrConfiguration.
//
// # Calling endpoints
//
// A Client pairs the service with a Transport. Typed methods are thin
// wrappers around Invoke or the generic Call:
//
//	type PetClient struct{ *restclient.Client }
//
//	func (c PetClient) GetPet(ctx context.Context, id int64) (Pet, error) {
//	    return restclient.Call[Pet](ctx, c.Client, "GetPet", id)
//	}
//
// Every call resolves the endpoint in a fixed order: service default
// headers, static endpoint headers, Header arguments, Path substitution,
// truthy Query arguments, the Body argument, then the Content-Type and
// Accepts defaults of NewRequest. The registered RequestInterceptor sees
// the finished descriptor right before dispatch.
//
// # Failures
//
// Transports report failures as *ErrorResponse. Status 0 is a network or
// client-side failure; a 2xx status means the body could not be parsed.
//
//	var er *restclient.ErrorResponse
//	if errors.As(err, &er) && er.Status == http.StatusNotFound {
//	    // ...
//	}
//
// MockTransport is a Transport for unit tests of generated clients.
package restclient
