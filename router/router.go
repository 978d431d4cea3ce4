package router

import (
	"net/http"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Yamemik/casher/config"
	itemHandler "github.com/Yamemik/casher/internal/item"
	"github.com/Yamemik/casher/internal/item/repository"
	"github.com/Yamemik/casher/internal/item/service"
	"github.com/Yamemik/casher/internal/schema"
	"github.com/Yamemik/casher/middleware"
	"github.com/Yamemik/casher/socket"
)

func Setup(db *mongo.Database, cfg config.Config, schemas *schema.Registry, hub *socket.Hub) http.Handler {
	mux := http.NewServeMux()

	repo := repository.NewItemRepository(db, schemas, repository.Options{
		TombstoneRetain: cfg.TombstoneRetain,
		ReadRetries:     2,
	})
	itemService := service.NewItemService(repo, schemas, hub, cfg.MaxPageSize)
	items := itemHandler.NewItemHandler(itemService)

	auth := middleware.Auth(cfg.JWTSecret)

	// WebSocket: mutation event feed per collection.
	wsHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner := r.Context().Value(middleware.OwnerKey).(string)
		socket.ServeWs(hub, w, r, owner)
	})
	mux.Handle("/ws", auth(wsHandler))

	// REST API
	mux.Handle("POST /collections/{name}/items", auth(http.HandlerFunc(items.CreateItem)))
	mux.Handle("GET /collections/{name}/items", auth(http.HandlerFunc(items.ListItems)))
	mux.Handle("GET /collections/{name}/items/{id}", auth(http.HandlerFunc(items.GetItem)))
	mux.Handle("PATCH /collections/{name}/items/{id}", auth(http.HandlerFunc(items.UpdateItem)))
	mux.Handle("DELETE /collections/{name}/items/{id}", auth(http.HandlerFunc(items.DeleteItem)))
	mux.Handle("GET /collections/{name}/count", auth(http.HandlerFunc(items.CountItems)))

	var h http.Handler = mux
	h = middleware.Timeout(cfg.RequestTimeout)(h)
	h = middleware.Logging(h)
	return middleware.CORS(h)
}
