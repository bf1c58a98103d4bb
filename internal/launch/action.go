package launch

// Kind discriminates actions once a graph is serialized.
type Kind string

const (
	KindDeclareArgument         Kind = "declare_argument"
	KindLogInfo                 Kind = "log_info"
	KindLoadComposableNodes     Kind = "load_composable_nodes"
	KindComposableNodeContainer Kind = "composable_node_container"
	KindNode                    Kind = "node"
	KindInclude                 Kind = "include"
	KindGroup                   Kind = "group"
	KindTimer                   Kind = "timer"
	KindRecordBag               Kind = "record_bag"
	KindRobotDescription        Kind = "robot_description"
)

// Action is one element of a launch graph.
type Action interface {
	Kind() Kind
}

// Remapping renames a topic for a single node.
type Remapping struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// Remap is shorthand for a Remapping literal.
func Remap(from, to string) Remapping {
	return Remapping{From: from, To: to}
}

// Parameter is either a parameter file or an inline dictionary. Parameters
// are applied in order, later entries overriding earlier ones.
type Parameter struct {
	File   string         `json:"file,omitempty" yaml:"file,omitempty"`
	Values map[string]any `json:"values,omitempty" yaml:"values,omitempty"`
}

func ParamFile(path string) Parameter {
	return Parameter{File: path}
}

func ParamValues(values map[string]any) Parameter {
	return Parameter{Values: values}
}

// ComposableNode is a component loaded into a container process.
type ComposableNode struct {
	Name       string      `json:"name" yaml:"name"`
	Namespace  string      `json:"namespace,omitempty" yaml:"namespace,omitempty"`
	Package    string      `json:"package" yaml:"package"`
	Plugin     string      `json:"plugin" yaml:"plugin"`
	Parameters []Parameter `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Remappings []Remapping `json:"remappings,omitempty" yaml:"remappings,omitempty"`
}

type DeclareArgument struct {
	Name        string   `json:"name" yaml:"name"`
	Default     *string  `json:"default,omitempty" yaml:"default,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Choices     []string `json:"choices,omitempty" yaml:"choices,omitempty"`
}

func (DeclareArgument) Kind() Kind { return KindDeclareArgument }

type LogInfo struct {
	Message string `json:"message" yaml:"message"`
}

func (LogInfo) Kind() Kind { return KindLogInfo }

type LoadComposableNodes struct {
	TargetContainer string           `json:"target_container" yaml:"target_container"`
	Nodes           []ComposableNode `json:"nodes" yaml:"nodes"`
}

func (LoadComposableNodes) Kind() Kind { return KindLoadComposableNodes }

type ComposableNodeContainer struct {
	Name       string           `json:"name" yaml:"name"`
	Namespace  string           `json:"namespace" yaml:"namespace"`
	Package    string           `json:"package" yaml:"package"`
	Executable string           `json:"executable" yaml:"executable"`
	Arguments  []string         `json:"arguments,omitempty" yaml:"arguments,omitempty"`
	Nodes      []ComposableNode `json:"nodes,omitempty" yaml:"nodes,omitempty"`
}

func (ComposableNodeContainer) Kind() Kind { return KindComposableNodeContainer }

// Node is a standalone process.
type Node struct {
	Name       string      `json:"name,omitempty" yaml:"name,omitempty"`
	Namespace  string      `json:"namespace,omitempty" yaml:"namespace,omitempty"`
	Package    string      `json:"package" yaml:"package"`
	Executable string      `json:"executable" yaml:"executable"`
	Arguments  []string    `json:"arguments,omitempty" yaml:"arguments,omitempty"`
	Parameters []Parameter `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Remappings []Remapping `json:"remappings,omitempty" yaml:"remappings,omitempty"`
	Output     string      `json:"output,omitempty" yaml:"output,omitempty"`
	// ShutdownOnExit stops the whole launch when this process exits.
	ShutdownOnExit bool `json:"shutdown_on_exit,omitempty" yaml:"shutdown_on_exit,omitempty"`
}

func (Node) Kind() Kind { return KindNode }

// Include pulls in another launch file. Description is set when the
// included file is generated by this repository and nil for files owned by
// other packages.
type Include struct {
	Package     string            `json:"package" yaml:"package"`
	File        string            `json:"file" yaml:"file"`
	Arguments   map[string]string `json:"arguments,omitempty" yaml:"arguments,omitempty"`
	Description *Description      `json:"description,omitempty" yaml:"description,omitempty"`
}

func (Include) Kind() Kind { return KindInclude }

type Group struct {
	Namespace string  `json:"namespace,omitempty" yaml:"namespace,omitempty"`
	Actions   Actions `json:"actions" yaml:"actions"`
}

func (Group) Kind() Kind { return KindGroup }

// Timer delays its actions by Period seconds after launch start.
type Timer struct {
	Period  float64 `json:"period" yaml:"period"`
	Actions Actions `json:"actions" yaml:"actions"`
}

func (Timer) Kind() Kind { return KindTimer }

// RecordBag records Topics into an mcap bag at Output.
type RecordBag struct {
	Topics  []string `json:"topics" yaml:"topics"`
	Output  string   `json:"output" yaml:"output"`
	Storage string   `json:"storage" yaml:"storage"`
}

func (RecordBag) Kind() Kind { return KindRecordBag }

// RobotDescription publishes the robot URDF with the transforms found in
// CalibrationPath.
type RobotDescription struct {
	CalibrationPath string `json:"calibration_path" yaml:"calibration_path"`
}

func (RobotDescription) Kind() Kind { return KindRobotDescription }
