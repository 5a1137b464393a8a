package templates

import "github.com/terra-clan/contest-client/internal/models"

var builtin = []Template{
	{
		Language:    models.LanguageJava,
		DisplayName: "Java",
		EditorMode:  "java",
		Body:        javaTemplate,
	},
	{
		Language:    models.LanguagePython,
		DisplayName: "Python",
		EditorMode:  "python",
		Body:        pythonTemplate,
	},
	{
		Language:    models.LanguageCPP,
		DisplayName: "C++",
		EditorMode:  "cpp",
		Body:        cppTemplate,
	},
	{
		Language:    models.LanguageJavaScript,
		DisplayName: "JavaScript",
		EditorMode:  "javascript",
		Body:        javascriptTemplate,
	},
}

const javaTemplate = `import java.util.*;

public class Main {
    public static void main(String[] args) {
        Scanner sc = new Scanner(System.in);
        
        // Read input
        
        // Solve problem
        
        // Print output
        
        sc.close();
    }
}`

const pythonTemplate = `# Problem

def solve():
    # Read input
    
    # Solve problem
    
    # Print output
    pass

if __name__ == "__main__":
    solve()`

const cppTemplate = `#include <iostream>
#include <vector>
using namespace std;

int main() {
    // Read input
    
    // Solve problem
    
    // Print output
    
    return 0;
}`

const javascriptTemplate = `// Problem

const readline = require('readline');
const rl = readline.createInterface({
    input: process.stdin,
    output: process.stdout
});

let lines = [];
rl.on('line', (line) => {
    lines.push(line);
}).on('close', () => {
    // Read input from lines array
    
    // Solve problem
    
    // Print output
    console.log();
});`
