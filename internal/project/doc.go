// Package project loads the projects of a monorepo from their manifests.
//
// A project is declared by a manifest file (project.yml, project.yaml or
// project.toml) that normally lives in a "deployment" directory directly below
// the project's root:
//
//	services/orders/
//	  deployment/project.yml
//	  src/...
//
// The project's root path is the directory that contains the manifest
// directory, always with a trailing slash so that prefix matching on
// repository paths does not confuse "svc/" with "svc-legacy/".
package project
