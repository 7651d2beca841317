package routes

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/driftwood2d/resvfs/internal/decode"
	"github.com/driftwood2d/resvfs/internal/logging"
	"github.com/driftwood2d/resvfs/internal/overlay"
	"github.com/driftwood2d/resvfs/internal/resource"
	"github.com/driftwood2d/resvfs/internal/server"
	"github.com/driftwood2d/resvfs/internal/vfs"
)

// RegisterResourceRoutes 暴露 /-/ 诊断接口：挂载列表、热补丁、路径解析、缓存查看与失效。
func RegisterResourceRoutes(app *fiber.App, manager *resource.Manager, logger logrus.FieldLogger) {
	if app == nil || manager == nil {
		return
	}
	logger = logging.OrNop(logger)

	app.Get("/-/mounts", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"mounts":   encodeMounts(manager.Mounts()),
			"injected": manager.Injected(),
		})
	})

	app.Post("/-/mounts", func(c fiber.Ctx) error {
		var req mountRequest
		if err := c.Bind().JSON(&req); err != nil || strings.TrimSpace(req.Location) == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "location_required"})
		}
		id, err := manager.Mount(req.Location)
		if err != nil {
			return server.RenderError(c, logger, "mount", err)
		}
		mounts := manager.Mounts()
		return c.Status(fiber.StatusCreated).JSON(encodeMount(mounts[int(id)]))
	})

	app.Get("/-/resolve/*", func(c fiber.Ctx) error {
		p, err := pathParam(c)
		if err != nil {
			return server.RenderError(c, logger, "resolve", err)
		}
		mount, err := manager.Resolve(p)
		if err != nil {
			return server.RenderError(c, logger, "resolve", err)
		}
		return c.JSON(resolvePayload{
			Path:  p,
			Mount: encodeMount(mount),
		})
	})

	app.Get("/-/files", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"files": encodeFiles(manager.Files())})
	})

	app.Get("/-/cache", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"tick":    manager.Ticks(),
			"ttl":     manager.Cache().Policy().Ticks(),
			"stats":   manager.Stats(),
			"entries": manager.Entries(),
		})
	})

	app.Post("/-/cache/flush", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"removed": manager.Flush()})
	})

	app.Delete("/-/cache/*", func(c fiber.Ctx) error {
		p, err := pathParam(c)
		if err != nil {
			return server.RenderError(c, logger, "purge", err)
		}
		return c.JSON(fiber.Map{"path": p, "removed": manager.Purge(p)})
	})

	app.Get("/-/resources/*", func(c fiber.Ctx) error {
		p, err := pathParam(c)
		if err != nil {
			return server.RenderError(c, logger, "get", err)
		}
		dec := decode.ForPath(p)
		if key := c.Query("decoder"); key != "" {
			var ok bool
			if dec, ok = decode.Resolve(key); !ok {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "decoder_unknown"})
			}
		}

		h, err := manager.Get(p, dec.Decode)
		if err != nil {
			return server.RenderError(c, logger, "get", err)
		}
		defer manager.Release(h)

		value := h.Value()
		if dec.Key == "template" {
			// 编译结果来自缓存，每次请求以查询参数作为变量渲染。
			if value, err = decode.Render(value, c.Queries()); err != nil {
				return server.RenderError(c, logger, "render", err)
			}
		}
		return c.JSON(resourcePayload{
			Path:     p,
			Decoder:  dec.Key,
			Location: h.Location(),
			Value:    value,
		})
	})

	app.Get("/-/decoders", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"decoders": decode.List()})
	})
}

// pathParam 解码通配段中的百分号转义后再校验，编码过的 .. 同样被拒绝。
func pathParam(c fiber.Ctx) (vfs.Path, error) {
	raw := c.Params("*")
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %w", vfs.ErrPathInvalid, raw, err)
	}
	return vfs.ParsePath(decoded)
}

type mountRequest struct {
	Location string `json:"location"`
}

type mountPayload struct {
	Priority overlay.MountID `json:"priority"`
	Kind     string          `json:"kind"`
	Location string          `json:"location"`
}

type resolvePayload struct {
	Path  vfs.Path     `json:"path"`
	Mount mountPayload `json:"mount"`
}

type filePayload struct {
	Path     vfs.Path        `json:"path"`
	Priority overlay.MountID `json:"priority"`
}

type resourcePayload struct {
	Path     vfs.Path `json:"path"`
	Decoder  string   `json:"decoder"`
	Location string   `json:"location"`
	Value    any      `json:"value"`
}

func encodeMount(m overlay.Mount) mountPayload {
	return mountPayload{
		Priority: m.ID,
		Kind:     string(m.Source.Kind()),
		Location: m.Source.Location(),
	}
}

func encodeMounts(mounts []overlay.Mount) []mountPayload {
	result := make([]mountPayload, 0, len(mounts))
	for _, m := range mounts {
		result = append(result, encodeMount(m))
	}
	return result
}

func encodeFiles(files []overlay.FileEntry) []filePayload {
	result := make([]filePayload, 0, len(files))
	for _, f := range files {
		result = append(result, filePayload{Path: f.Path, Priority: f.Owner})
	}
	return result
}
