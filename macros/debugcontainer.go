package macros

import (
	"github.com/jhump/gopoet"

	"github.com/jhump/dimacros/macro"
)

// DebugContainer implements @DebugContainer. It adds debug introspection to
// a container type:
//
//	// @DebugContainer(logLevel: .verbose, trackResolutions: true)
//	type AppContainer struct { ... }
//
// gets EnableDebugMode, GetRegistrationStats and GetRegistrationInfo methods
// and a conformance to dimacros.DebuggableContainer.
type DebugContainer struct{}

var _ macro.Macro = DebugContainer{}

const (
	enableDebugMode      = "EnableDebugMode"
	getRegistrationStats = "GetRegistrationStats"
	getRegistrationInfo  = "GetRegistrationInfo"
	performHealthCheck   = "PerformHealthCheck"
)

func (DebugContainer) Name() string { return "DebugContainer" }

func (DebugContainer) Doc() string {
	return "adds debug-mode, registration statistics and health-check methods to a container"
}

func (DebugContainer) Schema() macro.Schema {
	return macro.Schema{
		{Name: "logLevel", Kind: macro.OptEnum, Default: "info", Allowed: []string{"verbose", "info", "warning", "error"}, Doc: "debug log level"},
		{Name: "trackResolutions", Kind: macro.OptBool, Default: false, Doc: "record each resolution"},
		{Name: "detectCircularDeps", Kind: macro.OptBool, Default: false, Doc: "report dependency cycles"},
		{Name: "performanceTracking", Kind: macro.OptBool, Default: false, Doc: "time resolutions"},
		{Name: "realTimeMonitoring", Kind: macro.OptBool, Default: false, Doc: "stream container events"},
	}
}

func (DebugContainer) Supports() []macro.DeclKind {
	return []macro.DeclKind{macro.KindStruct}
}

func (DebugContainer) Validate(args *macro.ParsedArguments, shape *macro.DeclarationShape) macro.Diagnostics {
	diags := macro.CheckNotGeneric(shape, args.Pos())
	diags = append(diags, macro.CheckConflicts(shape, args.Pos(),
		enableDebugMode, getRegistrationStats, getRegistrationInfo, performHealthCheck)...)
	if args.Bool("detectCircularDeps") && !args.Bool("trackResolutions") {
		diags = append(diags, macro.Warnf(macro.ValidationFailed, args.At("detectCircularDeps"),
			"detectCircularDeps has no effect unless trackResolutions is also enabled"))
	}
	return diags
}

func (DebugContainer) Templates() []macro.Template {
	return []macro.Template{
		{Name: "debug-methods", Emission: macro.EmitMember, Build: buildDebugMethods},
		{Name: "health-check", Emission: macro.EmitExtension, Build: buildHealthCheck},
	}
}

func buildDebugMethods(args *macro.ParsedArguments, shape *macro.DeclarationShape) (macro.Piece, bool, error) {
	recv := newShapeNamer(shape).fresh(receiverName(shape.Name))

	enable := &macro.Method{
		Doc:     enableDebugMode + " turns on debug logging and monitoring for the container.",
		Recv:    recv,
		Type:    shape.Name,
		Pointer: true,
		Name:    enableDebugMode,
	}
	enable.Body.Printlnf("%s(%q, %q)", runtimePkg.Symbol("EnableDebugMode"), shape.Name, args.Enum("logLevel"))

	stats := &macro.Method{
		Doc:       getRegistrationStats + " returns container registration statistics.",
		Recv:      recv,
		Type:      shape.Name,
		Pointer:   true,
		Name:      getRegistrationStats,
		Signature: macro.Signature{Results: []macro.Var{{Type: statsType}}},
	}
	stats.Body.Println("return map[string]any{")
	stats.Body.Println(`"total_registrations": 0,`)
	stats.Body.Println(`"enabled": true,`)
	stats.Body.Printlnf(`"debug_level": %q,`, args.Enum("logLevel"))
	stats.Body.Printlnf(`"track_resolutions": %t,`, args.Bool("trackResolutions"))
	stats.Body.Printlnf(`"detect_circular_deps": %t,`, args.Bool("detectCircularDeps"))
	stats.Body.Println("}")

	info := &macro.Method{
		Doc:       getRegistrationInfo + " returns detailed registration information.",
		Recv:      recv,
		Type:      shape.Name,
		Pointer:   true,
		Name:      getRegistrationInfo,
		Signature: macro.Signature{Results: []macro.Var{{Type: statsType}}},
	}
	info.Body.Println("return map[string]any{")
	info.Body.Println(`"registrations": []string{},`)
	info.Body.Printlnf(`"performance_tracking": %t,`, args.Bool("performanceTracking"))
	info.Body.Printlnf(`"real_time_monitoring": %t,`, args.Bool("realTimeMonitoring"))
	info.Body.Println("}")

	return macro.Piece{
		Emission: macro.EmitMember,
		Contract: "adds methods " + enableDebugMode + ", " + getRegistrationStats + ", " + getRegistrationInfo,
		Elements: []macro.Element{enable, stats, info},
	}, true, nil
}

func buildHealthCheck(_ *macro.ParsedArguments, shape *macro.DeclarationShape) (macro.Piece, bool, error) {
	check := &macro.Method{
		Doc:       performHealthCheck + " reports the health of the container.",
		Recv:      newShapeNamer(shape).fresh(receiverName(shape.Name)),
		Type:      shape.Name,
		Pointer:   true,
		Name:      performHealthCheck,
		Signature: macro.Signature{Results: []macro.Var{{Type: gopoet.NamedType(runtimePkg.Symbol("ContainerHealth"))}}},
	}
	check.Body.Printlnf("return %s{IsHealthy: true, Issues: []string{}}", runtimePkg.Symbol("ContainerHealth"))

	return macro.Piece{
		Emission: macro.EmitExtension,
		Contract: "adds conformance dimacros.DebuggableContainer",
		Elements: []macro.Element{
			&macro.Conformance{Interface: runtimePkg.Symbol("DebuggableContainer"), Type: shape.Name, Pointer: true},
			check,
		},
	}, true, nil
}
