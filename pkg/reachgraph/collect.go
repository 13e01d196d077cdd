package reachgraph

import (
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/panbanda/clonewatch/pkg/parser"
	"github.com/zeebo/blake3"
)

// fileData holds everything collected from a single source file in one AST
// walk: definitions, the usages and calls that reference them, type/interface
// conformance for protocol-witness edges, and unreachable-block findings.
type fileData struct {
	path              string
	definitions       map[string]definitionInfo
	usages            map[string]bool
	calls             []callRef
	typeImpls         []typeImpl
	language          parser.Language
	unreachableBlocks []UnreachableBlock
}

type definitionInfo struct {
	name         string
	kind         ItemType
	file         string
	line         uint32
	endLine      uint32
	visibility   string
	exported     bool
	nodeID       uint32
	isFFI        bool
	isTestFile   bool
	contextHash  string
	receiverType string
}

type callRef struct {
	caller   string
	callee   string
	line     uint32
	kind     EdgeKind
	receiver string
}

type typeImpl struct {
	typeName      string
	interfaceName string
	methods       []string
}

// collectFile parses path and walks its AST once to gather definitions,
// usages, calls, type implementations and unreachable blocks.
func collectFile(psr *parser.Parser, path string) (*fileData, error) {
	result, err := psr.ParseFile(path)
	if err != nil {
		return nil, err
	}

	fd := &fileData{
		path:              path,
		definitions:       make(map[string]definitionInfo),
		usages:            make(map[string]bool),
		calls:             make([]callRef, 0),
		typeImpls:         make([]typeImpl, 0),
		language:          result.Language,
		unreachableBlocks: make([]UnreachableBlock, 0),
	}

	collectAllInSinglePass(result, fd)
	return fd, nil
}

// collectAllInSinglePass walks the AST exactly once, collecting definitions,
// usages, calls, type implementations and unreachable code blocks. O(n) in
// AST nodes.
func collectAllInSinglePass(result *parser.ParseResult, fd *fileData) {
	root := result.Tree.RootNode()
	inTestFile := isTestFile(result.Path)
	varTypes := variableNodeTypes(result.Language)
	classTypes := classNodeTypes(result.Language)
	identTypes := map[string]bool{"identifier": true, "type_identifier": true, "field_identifier": true}

	var currentFunction string
	typeMethods := make(map[string][]string)

	parser.Walk(root, result.Source, func(node *sitter.Node, source []byte) bool {
		nodeType := node.Type()

		if isFunctionNode(nodeType) {
			nameNode := functionNameNode(node)
			if nameNode != nil {
				name := parser.GetNodeText(nameNode, source)
				if name != "" {
					isFFI := isFFIExported(node, source, result.Language)
					receiverType := extractReceiverType(node, source, result.Language)

					kind := ItemTypeFunction
					if receiverType != "" {
						if result.Language == parser.LangGo {
							typeMethods[receiverType] = append(typeMethods[receiverType], name)
						}
					}

					line := node.StartPoint().Row + 1
					endLine := node.EndPoint().Row + 1

					fd.definitions[name] = definitionInfo{
						name:         name,
						kind:         kind,
						file:         result.Path,
						line:         line,
						endLine:      endLine,
						visibility:   symbolVisibility(name, result.Language),
						exported:     isExportedSymbol(name, result.Language),
						isFFI:        isFFI,
						isTestFile:   inTestFile,
						contextHash:  computeContextHash(name, result.Path, line, string(kind)),
						receiverType: receiverType,
					}

					currentFunction = name

					if bodyNode := functionBody(node); bodyNode != nil {
						unreachable := findUnreachableInBlock(bodyNode, source, result.Language, result.Path)
						fd.unreachableBlocks = append(fd.unreachableBlocks, unreachable...)
					}
				}
			}
		}

		for _, vt := range varTypes {
			if nodeType == vt {
				name := extractVarName(node, source, result.Language)
				if name != "" {
					line := node.StartPoint().Row + 1
					fd.definitions[name] = definitionInfo{
						name:        name,
						kind:        ItemTypeVariable,
						file:        result.Path,
						line:        line,
						endLine:     node.EndPoint().Row + 1,
						visibility:  symbolVisibility(name, result.Language),
						exported:    isExportedSymbol(name, result.Language),
						isTestFile:  inTestFile,
						contextHash: computeContextHash(name, result.Path, line, "variable"),
					}
				}
				break
			}
		}

		for _, ct := range classTypes {
			if nodeType == ct {
				name := extractClassName(node, source)
				if name != "" {
					line := node.StartPoint().Row + 1
					fd.definitions[name] = definitionInfo{
						name:        name,
						kind:        ItemTypeClass,
						file:        result.Path,
						line:        line,
						endLine:     node.EndPoint().Row + 1,
						visibility:  symbolVisibility(name, result.Language),
						exported:    isExportedSymbol(name, result.Language),
						isTestFile:  inTestFile,
						contextHash: computeContextHash(name, result.Path, line, "class"),
					}

					if result.Language == parser.LangJava || result.Language == parser.LangCSharp {
						if implements := node.ChildByFieldName("interfaces"); implements != nil {
							for i := range int(implements.ChildCount()) {
								child := implements.Child(i)
								if child.Type() == "type_identifier" {
									interfaceName := parser.GetNodeText(child, source)
									fd.typeImpls = append(fd.typeImpls, typeImpl{typeName: name, interfaceName: interfaceName})
								}
							}
						}
					} else if result.Language == parser.LangTypeScript {
						if heritage := node.ChildByFieldName("heritage"); heritage != nil {
							collectTSHeritageClause(heritage, source, name, fd)
						}
					}
				}
				break
			}
		}

		if identTypes[nodeType] {
			fd.usages[parser.GetNodeText(node, source)] = true
		}

		if nodeType == "call_expression" || nodeType == "function_call" {
			if fnNode := node.ChildByFieldName("function"); fnNode != nil {
				fd.usages[parser.GetNodeText(fnNode, source)] = true
			}
		}

		if nodeType == "call_expression" || nodeType == "function_call" || nodeType == "invocation_expression" {
			callee, receiver := extractCalleeWithReceiver(node, source)
			if callee != "" && currentFunction != "" {
				kind := EdgeCall
				if receiver != "" {
					kind = EdgeIndirectCall
				}
				fd.calls = append(fd.calls, callRef{
					caller:   currentFunction,
					callee:   callee,
					line:     node.StartPoint().Row + 1,
					kind:     kind,
					receiver: receiver,
				})
			}
		}

		if nodeType == "import_declaration" || nodeType == "import_statement" ||
			nodeType == "use_declaration" || nodeType == "using_directive" {
			if importName := extractImportName(node, source, result.Language); importName != "" {
				fd.calls = append(fd.calls, callRef{
					callee: importName,
					line:   node.StartPoint().Row + 1,
					kind:   EdgeImport,
				})
			}
		}

		return true
	})

	if result.Language == parser.LangGo {
		for typeName, methods := range typeMethods {
			fd.typeImpls = append(fd.typeImpls, typeImpl{typeName: typeName, methods: methods})
		}
	}
}

func collectTSHeritageClause(heritage *sitter.Node, source []byte, className string, fd *fileData) {
	parser.Walk(heritage, source, func(child *sitter.Node, _ []byte) bool {
		if child.Type() == "implements_clause" {
			for i := range int(child.ChildCount()) {
				typeNode := child.Child(i)
				if typeNode.Type() == "type_identifier" {
					interfaceName := parser.GetNodeText(typeNode, source)
					fd.typeImpls = append(fd.typeImpls, typeImpl{typeName: className, interfaceName: interfaceName})
				}
			}
		}
		return true
	})
}

func classNodeTypes(lang parser.Language) []string {
	switch lang {
	case parser.LangGo:
		return []string{"type_declaration", "type_spec"}
	case parser.LangRust:
		return []string{"struct_item", "enum_item", "trait_item"}
	case parser.LangPython:
		return []string{"class_definition"}
	case parser.LangTypeScript, parser.LangJavaScript, parser.LangTSX:
		return []string{"class_declaration", "interface_declaration"}
	case parser.LangJava, parser.LangCSharp:
		return []string{"class_declaration", "interface_declaration", "struct_declaration"}
	case parser.LangCPP:
		return []string{"class_specifier", "struct_specifier"}
	default:
		return []string{"class_declaration"}
	}
}

func extractClassName(node *sitter.Node, source []byte) string {
	if nameNode := node.ChildByFieldName("name"); nameNode != nil {
		return parser.GetNodeText(nameNode, source)
	}
	for i := range int(node.ChildCount()) {
		child := node.Child(i)
		if child.Type() == "type_identifier" || child.Type() == "identifier" {
			return parser.GetNodeText(child, source)
		}
	}
	return ""
}

func extractReceiverType(node *sitter.Node, source []byte, lang parser.Language) string {
	if lang != parser.LangGo {
		return ""
	}
	if receiver := node.ChildByFieldName("receiver"); receiver != nil {
		for i := range int(receiver.ChildCount()) {
			child := receiver.Child(i)
			if child.Type() == "parameter_declaration" {
				if typeNode := child.ChildByFieldName("type"); typeNode != nil {
					return strings.TrimPrefix(parser.GetNodeText(typeNode, source), "*")
				}
			}
		}
	}
	return ""
}

func extractCalleeWithReceiver(node *sitter.Node, source []byte) (callee, receiver string) {
	if fnNode := node.ChildByFieldName("function"); fnNode != nil {
		if fnNode.Type() == "member_expression" || fnNode.Type() == "field_expression" ||
			fnNode.Type() == "selector_expression" {
			if propNode := fnNode.ChildByFieldName("property"); propNode != nil {
				callee = parser.GetNodeText(propNode, source)
			} else if fieldNode := fnNode.ChildByFieldName("field"); fieldNode != nil {
				callee = parser.GetNodeText(fieldNode, source)
			}
			if objNode := fnNode.ChildByFieldName("object"); objNode != nil {
				receiver = parser.GetNodeText(objNode, source)
			} else if objNode := fnNode.ChildByFieldName("operand"); objNode != nil {
				receiver = parser.GetNodeText(objNode, source)
			}
			return callee, receiver
		}
		return parser.GetNodeText(fnNode, source), ""
	}
	if node.ChildCount() > 0 {
		firstChild := node.Child(0)
		if firstChild.Type() == "identifier" || firstChild.Type() == "scoped_identifier" {
			return parser.GetNodeText(firstChild, source), ""
		}
	}
	return "", ""
}

var functionNodeTypes = map[string]bool{
	"function_declaration":    true,
	"method_declaration":      true,
	"function_definition":     true,
	"function_item":           true,
	"method_definition":       true,
	"function":                true,
	"arrow_function":          true,
	"method":                  true,
	"constructor_declaration": true,
	"lambda_expression":       true,
}

func isFunctionNode(nodeType string) bool { return functionNodeTypes[nodeType] }

func functionBody(node *sitter.Node) *sitter.Node {
	if body := node.ChildByFieldName("body"); body != nil {
		return body
	}
	if body := node.ChildByFieldName("block"); body != nil {
		return body
	}
	for i := range int(node.ChildCount()) {
		child := node.Child(i)
		if child.Type() == "block" || child.Type() == "statement_block" || child.Type() == "compound_statement" {
			return child
		}
	}
	return nil
}

func findUnreachableInBlock(block *sitter.Node, source []byte, lang parser.Language, file string) []UnreachableBlock {
	var unreachable []UnreachableBlock
	seenTerminator := false
	terminatorLine := uint32(0)

	for i := range int(block.ChildCount()) {
		child := block.Child(i)
		nodeType := child.Type()

		if nodeType == "{" || nodeType == "}" || nodeType == "comment" {
			continue
		}

		if seenTerminator {
			startLine := child.StartPoint().Row + 1
			endLine := child.EndPoint().Row + 1

			if len(unreachable) > 0 {
				last := &unreachable[len(unreachable)-1]
				if last.EndLine+1 >= startLine {
					last.EndLine = endLine
					continue
				}
			}

			unreachable = append(unreachable, UnreachableBlock{
				File:      file,
				StartLine: startLine,
				EndLine:   endLine,
				Reason:    "code after terminating statement at line " + strconv.FormatUint(uint64(terminatorLine), 10),
			})
			continue
		}

		if isTerminatingStatement(child, source, lang) {
			seenTerminator = true
			terminatorLine = child.StartPoint().Row + 1
		}
	}

	return unreachable
}

func isTerminatingStatement(node *sitter.Node, source []byte, lang parser.Language) bool {
	nodeType := node.Type()

	if nodeType == "return_statement" || nodeType == "return" {
		return true
	}

	switch lang {
	case parser.LangGo:
		if nodeType == "expression_statement" || nodeType == "call_expression" {
			text := parser.GetNodeText(node, source)
			if strings.Contains(text, "panic(") || strings.Contains(text, "os.Exit(") ||
				strings.Contains(text, "log.Fatal") || strings.Contains(text, "log.Panic") {
				return true
			}
		}
	case parser.LangRust:
		if nodeType == "expression_statement" || nodeType == "macro_invocation" {
			text := parser.GetNodeText(node, source)
			if strings.Contains(text, "panic!") || strings.Contains(text, "unreachable!") ||
				strings.Contains(text, "todo!") || strings.Contains(text, "unimplemented!") ||
				strings.Contains(text, "std::process::exit") {
				return true
			}
		}
	case parser.LangPython:
		if nodeType == "raise_statement" {
			return true
		}
		if nodeType == "expression_statement" {
			text := parser.GetNodeText(node, source)
			if strings.Contains(text, "sys.exit(") || strings.Contains(text, "os._exit(") ||
				strings.Contains(text, "exit(") || strings.Contains(text, "quit()") {
				return true
			}
		}
	case parser.LangTypeScript, parser.LangJavaScript, parser.LangTSX:
		if nodeType == "throw_statement" {
			return true
		}
		if nodeType == "expression_statement" {
			if strings.Contains(parser.GetNodeText(node, source), "process.exit(") {
				return true
			}
		}
	case parser.LangJava, parser.LangCSharp:
		if nodeType == "throw_statement" {
			return true
		}
		if nodeType == "expression_statement" {
			text := parser.GetNodeText(node, source)
			if strings.Contains(text, "System.exit(") || strings.Contains(text, "Environment.Exit(") {
				return true
			}
		}
	case parser.LangC, parser.LangCPP:
		if nodeType == "expression_statement" {
			text := parser.GetNodeText(node, source)
			if strings.Contains(text, "exit(") || strings.Contains(text, "abort(") ||
				strings.Contains(text, "_Exit(") || strings.Contains(text, "std::terminate") {
				return true
			}
		}
	}

	return false
}

func functionNameNode(node *sitter.Node) *sitter.Node {
	if nameNode := node.ChildByFieldName("name"); nameNode != nil {
		return nameNode
	}
	if nameNode := node.ChildByFieldName("declarator"); nameNode != nil {
		if identNode := nameNode.ChildByFieldName("declarator"); identNode != nil {
			return identNode
		}
		return nameNode
	}
	return nil
}

func extractImportName(node *sitter.Node, source []byte, lang parser.Language) string {
	switch lang {
	case parser.LangGo:
		if pathNode := node.ChildByFieldName("path"); pathNode != nil {
			text := parser.GetNodeText(pathNode, source)
			text = text[1 : len(text)-1]
			for i := len(text) - 1; i >= 0; i-- {
				if text[i] == '/' {
					return text[i+1:]
				}
			}
			return text
		}
	case parser.LangRust:
		if pathNode := node.ChildByFieldName("argument"); pathNode != nil {
			return parser.GetNodeText(pathNode, source)
		}
	case parser.LangPython:
		if nameNode := node.ChildByFieldName("name"); nameNode != nil {
			return parser.GetNodeText(nameNode, source)
		}
	case parser.LangTypeScript, parser.LangJavaScript, parser.LangTSX:
		if sourceNode := node.ChildByFieldName("source"); sourceNode != nil {
			text := parser.GetNodeText(sourceNode, source)
			if len(text) > 2 {
				return text[1 : len(text)-1]
			}
		}
	}
	return ""
}

func variableNodeTypes(lang parser.Language) []string {
	switch lang {
	case parser.LangGo:
		return []string{"var_declaration", "const_declaration", "short_var_declaration"}
	case parser.LangRust:
		return []string{"let_declaration", "const_item", "static_item"}
	case parser.LangPython:
		return []string{"assignment", "augmented_assignment"}
	case parser.LangTypeScript, parser.LangJavaScript, parser.LangTSX:
		return []string{"variable_declaration", "lexical_declaration"}
	case parser.LangJava, parser.LangCSharp:
		return []string{"local_variable_declaration", "field_declaration"}
	case parser.LangC, parser.LangCPP:
		return []string{"declaration", "init_declarator"}
	case parser.LangRuby:
		return []string{"assignment"}
	case parser.LangPHP:
		return []string{"simple_variable", "property_declaration"}
	default:
		return []string{"variable_declaration", "assignment"}
	}
}

func extractVarName(node *sitter.Node, source []byte, lang parser.Language) string {
	switch lang {
	case parser.LangGo:
		if nameNode := node.ChildByFieldName("name"); nameNode != nil {
			return parser.GetNodeText(nameNode, source)
		}
		for i := range int(node.ChildCount()) {
			child := node.Child(i)
			if child.Type() == "identifier" {
				return parser.GetNodeText(child, source)
			}
		}
	case parser.LangRust:
		if patternNode := node.ChildByFieldName("pattern"); patternNode != nil {
			return parser.GetNodeText(patternNode, source)
		}
	case parser.LangPython:
		if leftNode := node.ChildByFieldName("left"); leftNode != nil {
			return parser.GetNodeText(leftNode, source)
		}
	case parser.LangTypeScript, parser.LangJavaScript, parser.LangTSX:
		for i := range int(node.ChildCount()) {
			child := node.Child(i)
			if child.Type() == "variable_declarator" {
				if nameNode := child.ChildByFieldName("name"); nameNode != nil {
					return parser.GetNodeText(nameNode, source)
				}
			}
		}
	default:
		if nameNode := node.ChildByFieldName("name"); nameNode != nil {
			return parser.GetNodeText(nameNode, source)
		}
	}
	return ""
}

func symbolVisibility(name string, lang parser.Language) string {
	switch lang {
	case parser.LangGo:
		if len(name) > 0 && name[0] >= 'A' && name[0] <= 'Z' {
			return "public"
		}
		return "private"
	case parser.LangRust:
		return "unknown"
	case parser.LangPython:
		if len(name) > 1 && name[0] == '_' && name[1] == '_' {
			return "private"
		}
		if len(name) > 0 && name[0] == '_' {
			return "internal"
		}
		return "public"
	case parser.LangRuby:
		if len(name) > 0 && name[0] == '_' {
			return "private"
		}
		return "public"
	default:
		return "unknown"
	}
}

func isExportedSymbol(name string, lang parser.Language) bool {
	switch lang {
	case parser.LangGo:
		return len(name) > 0 && name[0] >= 'A' && name[0] <= 'Z'
	case parser.LangPython:
		return len(name) == 0 || name[0] != '_'
	default:
		return true
	}
}

func isTestFile(path string) bool {
	return strings.HasSuffix(path, "_test.go") ||
		strings.HasSuffix(path, "_test.py") ||
		strings.HasSuffix(path, ".test.ts") ||
		strings.HasSuffix(path, ".test.js") ||
		strings.HasSuffix(path, ".spec.ts") ||
		strings.HasSuffix(path, ".spec.js") ||
		strings.Contains(path, "/test/") ||
		strings.Contains(path, "/tests/") ||
		strings.Contains(path, "/__tests__/")
}

func isFFIExported(node *sitter.Node, source []byte, lang parser.Language) bool {
	switch lang {
	case parser.LangGo:
		return hasGoExportComment(node, source)
	case parser.LangRust:
		return hasRustFFIAttribute(node, source)
	case parser.LangC, parser.LangCPP:
		return hasCFFIAttribute(node, source)
	case parser.LangPython:
		return hasPythonFFIDecorator(node, source)
	default:
		return false
	}
}

func hasGoExportComment(node *sitter.Node, source []byte) bool {
	startByte := node.StartByte()
	if startByte == 0 {
		return false
	}
	searchStart := uint32(0)
	if startByte > 200 {
		searchStart = startByte - 200
	}
	precedingText := string(source[searchStart:startByte])
	lines := strings.Split(precedingText, "\n")
	for i := len(lines) - 1; i >= 0 && i >= len(lines)-3; i-- {
		line := strings.TrimSpace(lines[i])
		if strings.HasPrefix(line, "//export ") || strings.HasPrefix(line, "//go:linkname") {
			return true
		}
	}
	return false
}

func hasRustFFIAttribute(node *sitter.Node, source []byte) bool {
	startByte := node.StartByte()
	if startByte == 0 {
		return false
	}
	searchStart := uint32(0)
	if startByte > 200 {
		searchStart = startByte - 200
	}
	precedingText := string(source[searchStart:startByte])
	return strings.Contains(precedingText, "#[no_mangle]") ||
		strings.Contains(precedingText, "extern \"C\"") ||
		strings.Contains(precedingText, "#[export_name")
}

func hasCFFIAttribute(node *sitter.Node, source []byte) bool {
	nodeText := parser.GetNodeText(node, source)
	return strings.Contains(nodeText, "__declspec(dllexport)") ||
		strings.Contains(nodeText, "__attribute__((visibility") ||
		strings.Contains(nodeText, "extern \"C\"")
}

func hasPythonFFIDecorator(node *sitter.Node, source []byte) bool {
	startByte := node.StartByte()
	if startByte == 0 {
		return false
	}
	searchStart := uint32(0)
	if startByte > 500 {
		searchStart = startByte - 500
	}
	precedingText := string(source[searchStart:startByte])
	return strings.Contains(precedingText, "@pyfunction") ||
		strings.Contains(precedingText, "@pyclass") ||
		strings.Contains(precedingText, "@pymethods") ||
		strings.Contains(precedingText, "@ffi.def_extern") ||
		strings.Contains(precedingText, "CFUNCTYPE")
}

func computeContextHash(name, file string, line uint32, kind string) string {
	data := name + ":" + file + ":" + strconv.FormatUint(uint64(line), 10) + ":" + kind
	hash := blake3.Sum256([]byte(data))
	return string(hash[:8])
}
