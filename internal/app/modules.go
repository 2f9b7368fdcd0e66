package app

import (
	"github.com/vk/gridci/internal/registry"
	"github.com/vk/gridci/modules/artifact"
	"github.com/vk/gridci/modules/checkout"
	"github.com/vk/gridci/modules/conda_env"
	"github.com/vk/gridci/modules/coverage"
	"github.com/vk/gridci/modules/http_client"
	"github.com/vk/gridci/modules/runtime_env"
	"github.com/vk/gridci/modules/setup_python"
	"github.com/vk/gridci/modules/shell"
	"github.com/vk/gridci/modules/workspace"
)

// coreModules is the default set of compiled-in step and asset modules.
// Tests pass their own set to NewApp to register stubs instead.
var coreModules = []registry.Module{
	&artifact.Module{},
	&checkout.Module{},
	&conda_env.Module{},
	&coverage.Module{},
	&http_client.Module{},
	&runtime_env.Module{},
	&setup_python.Module{},
	&shell.Module{},
	&workspace.Module{},
}
